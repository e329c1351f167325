package models

// Passage is a retrieved document fragment. Produced per query, never persisted.
type Passage struct {
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
	FileName   string  `json:"file_name"`
	SourceType string  `json:"source_type"`
}
