package model

// SharedTenant is the user id carried by content that every tenant may see.
const SharedTenant = "all"

type ChunkType string

const (
	ChunkTypeText    ChunkType = "text"
	ChunkTypeRepo    ChunkType = "repo"
	ChunkTypeProfile ChunkType = "profile"
)

const (
	MetaSource = "source"
	MetaUserID = "user_id"
	MetaType   = "type"
)

type ChunkMetadata struct {
	Source string    `json:"source"`
	UserID string    `json:"user_id"`
	Type   ChunkType `json:"type,omitempty"`
}

// Map flattens the metadata into the string map used by store filters.
func (m ChunkMetadata) Map() map[string]string {
	out := map[string]string{
		MetaSource: m.Source,
		MetaUserID: m.UserID,
	}
	if m.Type != "" {
		out[MetaType] = string(m.Type)
	}
	return out
}

func MetadataFromMap(values map[string]string) ChunkMetadata {
	return ChunkMetadata{
		Source: values[MetaSource],
		UserID: values[MetaUserID],
		Type:   ChunkType(values[MetaType]),
	}
}

// Chunk is an immutable span of source text with its embedding.
type Chunk struct {
	ID        string        `json:"id"`
	Text      string        `json:"text"`
	Embedding []float32     `json:"-"`
	Metadata  ChunkMetadata `json:"metadata"`
	Ctime     int64         `json:"ctime"`
}

type SearchResult struct {
	Chunk Chunk   `json:"chunk"`
	Score float32 `json:"score"`
}

type SourceDocument struct {
	Text   string
	Source string
}

// Source is one citation entry returned alongside an answer.
type Source struct {
	Source string `json:"source"`
}
