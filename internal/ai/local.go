package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultLocalDimension = 256

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localProvider embeds text offline by hashing word and bigram features into a
// fixed number of buckets. Vectors are L2 normalised.
type localProvider struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewLocalEmbedProvider(dimension int) IEmbedProvider {
	if dimension <= 0 {
		dimension = defaultLocalDimension
	}
	return &localProvider{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

func (p *localProvider) Name() string {
	return "local"
}

func (p *localProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, p.dimension)
	tokens := p.tokenize(text)
	for i, tok := range tokens {
		p.add(vec, tok, 1.0)
		if i > 0 {
			p.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, p.dimension)
	for i, v := range vec {
		if norm > 0 {
			v /= norm
		}
		out[i] = float32(v)
	}
	return out, nil
}

func (p *localProvider) add(vec []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func (p *localProvider) tokenize(text string) []string {
	raw := p.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		if _, isStop := p.stopwords[t]; isStop {
			continue
		}
		out = append(out, stem(t))
	}
	if len(out) > 0 {
		return out
	}
	// text made only of stopwords still needs a direction
	for _, t := range raw {
		out = append(out, stem(t))
	}
	return out
}

// stem folds the most common English plural and verb suffixes.
func stem(word string) string {
	for _, suffix := range []string{"ies", "es", "s"} {
		if len(word) > len(suffix)+2 && strings.HasSuffix(word, suffix) {
			if suffix == "ies" {
				return strings.TrimSuffix(word, suffix) + "y"
			}
			return strings.TrimSuffix(word, suffix)
		}
	}
	return word
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "what", "which", "who", "does", "do", "did", "can", "will", "just", "should", "now", "you", "your", "we", "our", "they", "their",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func createLocalEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewLocalEmbedProvider(cfg.Dimension), nil
}

func init() {
	RegisterEmbed("local", createLocalEmbedFactory)
}
