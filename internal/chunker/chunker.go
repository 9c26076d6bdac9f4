// Package chunker splits normalized page text into fixed, overlapping rune windows.
package chunker

import (
	"github.com/xxxsen/siteinsight/internal/model"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

type Chunker struct {
	size    int
	overlap int
}

type Option func(*Chunker)

// WithChunkSize sets the window length in runes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets how many runes consecutive windows share.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}
	return c
}

func (c *Chunker) Size() int {
	return c.size
}

func (c *Chunker) Overlap() int {
	return c.overlap
}

func (c *Chunker) Chunk(doc *model.NormalizedDocument) []string {
	if doc == nil {
		return nil
	}
	return c.Split(doc.BodyText)
}

// Split is deterministic: window i+1 starts size-overlap runes after window i
// and the last window ends at the end of text.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}
	step := c.size - c.overlap
	chunks := make([]string, 0, (len(runes)-c.overlap)/step+1)
	for start := 0; ; start += step {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Join reverses Split for chunks produced with the same overlap.
func Join(chunks []string, overlap int) string {
	if len(chunks) == 0 {
		return ""
	}
	out := []rune(chunks[0])
	for _, chunk := range chunks[1:] {
		out = append(out, []rune(chunk)[overlap:]...)
	}
	return string(out)
}
