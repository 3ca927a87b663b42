package model

type IngestKind string

const (
	IngestKindText    IngestKind = "text"
	IngestKindRepo    IngestKind = "repo"
	IngestKindProfile IngestKind = "profile"
)

type IngestRequest struct {
	Text   string
	Source string
	UserID string
}

type IngestResult struct {
	Kind    IngestKind      `json:"kind"`
	Source  string          `json:"source"`
	Chunks  int             `json:"chunks"`
	Profile *ProfileSummary `json:"profile,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
