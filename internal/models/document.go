package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyDocument is returned for a zero-length or whitespace-only document.
	ErrEmptyDocument = errors.New("empty document")
	// ErrUnsupportedShape is returned when the document is neither a wrapped
	// object nor an accepted bare array.
	ErrUnsupportedShape = errors.New("unsupported document shape")
)

// Document is the persisted shape of the fleet: {"services": [...]}.
type Document struct {
	Services ServiceCollection `json:"services"`
}

// DecodeDocument parses raw into a ServiceCollection.
// A wrapped object without a services array yields an empty collection.
// A bare array is accepted only when acceptBareArray is set.
func DecodeDocument(raw []byte, acceptBareArray bool) (ServiceCollection, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ErrEmptyDocument
	}

	switch trimmed[0] {
	case '[':
		if !acceptBareArray {
			return nil, fmt.Errorf("%w: bare array", ErrUnsupportedShape)
		}
		var list ServiceCollection
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return nonNil(list), nil
	case '{':
		var doc Document
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, err
		}
		return nonNil(doc.Services), nil
	default:
		if !json.Valid(trimmed) {
			return nil, errors.New("invalid JSON document")
		}
		return nil, fmt.Errorf("%w: top-level %q", ErrUnsupportedShape, trimmed[0])
	}
}

// EncodeDocument renders services in the wrapped shape, indented two spaces.
func EncodeDocument(services ServiceCollection) ([]byte, error) {
	return json.MarshalIndent(Document{Services: nonNil(services)}, "", "  ")
}

func nonNil(list ServiceCollection) ServiceCollection {
	if list == nil {
		return ServiceCollection{}
	}
	return list
}

// StoredDocument is the GORM row backing the sqlite store driver.
// Slot is "working"; Body holds the document bytes verbatim.
type StoredDocument struct {
	Slot      string    `gorm:"primaryKey;size:64" json:"slot"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name independent of GORM's pluralizer.
func (StoredDocument) TableName() string { return "documents" }
