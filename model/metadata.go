package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/roofrag/helper"
)

// ChunkMetadata represents the classification tags stored as JSONB in PostgreSQL
type ChunkMetadata struct {
	Category    Category    `json:"category,omitempty"`
	Urgency     Urgency     `json:"urgency,omitempty"`
	Season      []Season    `json:"season,omitempty"`
	ServiceType ServiceType `json:"serviceType,omitempty"`
	Complexity  Complexity  `json:"complexity,omitempty"`
	Location    string      `json:"location,omitempty"`
	Source      string      `json:"source,omitempty"`
	ChunkIndex  int         `json:"chunk_index"`
	ContentHash string      `json:"content_hash,omitempty"`
}

// Value implements the driver.Valuer interface for database storage
func (m ChunkMetadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *ChunkMetadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts ChunkMetadata to JSON bytes
func (m ChunkMetadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes, a JSON string or ChunkMetadata to ChunkMetadata
func (m *ChunkMetadata) Unmarshal(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*m = ChunkMetadata{}
		return nil
	case ChunkMetadata:
		*m = v
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}
}

// Merge returns m with every non-empty field of override applied.
// Classifier output is merged with the partial metadata a document carries.
func (m ChunkMetadata) Merge(override ChunkMetadata) ChunkMetadata {
	if override.Category != "" {
		m.Category = override.Category
	}
	if override.Urgency != "" {
		m.Urgency = override.Urgency
	}
	if len(override.Season) > 0 {
		m.Season = append([]Season(nil), override.Season...)
	}
	if override.ServiceType != "" {
		m.ServiceType = override.ServiceType
	}
	if override.Complexity != "" {
		m.Complexity = override.Complexity
	}
	if override.Location != "" {
		m.Location = override.Location
	}
	if override.Source != "" {
		m.Source = override.Source
	}
	return m
}

// HasSeason reports whether the metadata is tagged with s.
func (m ChunkMetadata) HasSeason(s Season) bool {
	for _, season := range m.Season {
		if season == s {
			return true
		}
	}
	return false
}
