package model

type Chunk struct {
	ID            string    `json:"id"`
	WebsiteURL    string    `json:"website_url"`
	Text          string    `json:"text"`
	SequenceIndex int       `json:"sequence_index"`
	Embedding     []float32 `json:"-"`
}

type ScoredChunk struct {
	Chunk
	Distance float64 `json:"distance"`
}
