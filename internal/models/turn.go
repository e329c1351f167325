package models

// Turn is one query/response pair in a conversation. Turns are immutable
// once stored and are appended in completion order within a session.
type Turn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}
