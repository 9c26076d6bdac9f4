package model

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnswerRecord struct {
	Answer       string   `json:"answer"`
	SourceChunks []string `json:"source_chunks"`
	History      []Turn   `json:"conversation_history"`
}
