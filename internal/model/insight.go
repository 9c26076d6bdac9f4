package model

type InsightRecord struct {
	URL            string            `json:"url"`
	Industry       string            `json:"industry"`
	CompanySize    *string           `json:"company_size"`
	Location       *string           `json:"location"`
	USP            *string           `json:"USP"`
	Products       []string          `json:"products"`
	TargetAudience *string           `json:"target_audience"`
	ContactInfo    ContactInfo       `json:"contact_info"`
	CustomAnswers  map[string]string `json:"custom_answers,omitempty"`
	AnalyzedAt     int64             `json:"analyzed_at"`
}
