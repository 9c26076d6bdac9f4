package model

// NormalizedDocument is the de-noised text form of a homepage.
type NormalizedDocument struct {
	URL             string      `json:"url"`
	Title           string      `json:"title"`
	MetaDescription string      `json:"meta_description"`
	Headings        []string    `json:"headings"`
	BodyText        string      `json:"body_text"`
	ContactInfo     ContactInfo `json:"contact_info"`
}

// ContactInfo holds deduplicated, sorted contact values.
type ContactInfo struct {
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	Social    []string `json:"social"`
	Addresses []string `json:"addresses,omitempty"`
}

func (c ContactInfo) IsEmpty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.Social) == 0 && len(c.Addresses) == 0
}
