package knowledge

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SourceType categorizes where a knowledge entry came from.
type SourceType string

// Known source types. The admin dashboard writes these; the pipeline only
// reads them.
const (
	SourceQA   SourceType = "qa"
	SourceFile SourceType = "file"
	SourceText SourceType = "text"
)

// Valid reports whether st is a known source type.
func (st SourceType) Valid() bool {
	switch st {
	case SourceQA, SourceFile, SourceText:
		return true
	}
	return false
}

// QAMetadata is the metadata shape for qa entries.
type QAMetadata struct {
	Question string `json:"question"`
	// RelatedQuestions are alias phrasings registered by the admin. Order is
	// preserved because exact-match resolution stops on the first hit.
	RelatedQuestions []string `json:"relative_questions,omitempty"`
	// Answer is the curated rich-text answer served on a match.
	Answer string `json:"answer"`
}

// FileMetadata is the metadata shape for file entries.
type FileMetadata struct {
	Filetype string `json:"filetype"`
}

// Metadata is a tagged union keyed by the owning entry's SourceType.
// Exactly one field is set for qa and file entries; text entries carry no
// metadata and leave both nil. Decoding through the tag catches shape errors
// at parse time instead of at first field access.
type Metadata struct {
	QA   *QAMetadata
	File *FileMetadata
}

// DecodeMetadata parses raw metadata JSON according to the source type.
// For SourceText, raw is ignored entirely.
func DecodeMetadata(st SourceType, raw []byte) (Metadata, error) {
	switch st {
	case SourceQA:
		var qa QAMetadata
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &qa); err != nil {
				return Metadata{}, fmt.Errorf("decoding qa metadata: %w", err)
			}
		}
		return Metadata{QA: &qa}, nil
	case SourceFile:
		var f FileMetadata
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &f); err != nil {
				return Metadata{}, fmt.Errorf("decoding file metadata: %w", err)
			}
		}
		return Metadata{File: &f}, nil
	case SourceText:
		return Metadata{}, nil
	default:
		return Metadata{}, fmt.Errorf("unknown source type %q", st)
	}
}

// Encode serializes the metadata back to JSON for storage.
func (m Metadata) Encode() ([]byte, error) {
	var v any
	switch {
	case m.QA != nil:
		v = m.QA
	case m.File != nil:
		v = m.File
	default:
		v = struct{}{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

// Entry is a knowledge base document as saved by the admin dashboard.
// The pipeline treats entries as read-only.
type Entry struct {
	ID         uuid.UUID
	Title      string
	SourceType SourceType
	Content    string
	// Embedding is unit-normalized at write time; Dim is constant across a
	// deployment.
	Embedding []float32
	Metadata  Metadata
	CreatedAt time.Time
}

// Chunk is a sentence-bounded slice of an entry's content with its own
// independently computed embedding. All chunks for a parent are dropped and
// regenerated when the parent is re-saved; there is no partial update.
type Chunk struct {
	ID         uuid.UUID
	ParentID   uuid.UUID
	SourceType SourceType
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   Metadata
	CreatedAt  time.Time
}

// ScoredChunk pairs a chunk with its similarity against a query vector.
type ScoredChunk struct {
	Chunk Chunk
	Score float32
}
