package models

import (
	"github.com/google/uuid"
)

// IBase is implemented by every persisted model via the embedded Base.
type IBase interface {
	GenIDIfEmpty()
	GenID()
	SetID(id string)
}

// Base gives models a UUID primary key. Documents use string UUIDs
// rather than ObjectIDs so IDs are stable across storage and URLs.
type Base struct {
	ID string `bson:"_id,omitempty" json:"id,omitempty"`
}

func (m *Base) GenIDIfEmpty() {
	if m.ID == "" {
		m.GenID()
	}
}

func (m *Base) GenID() {
	m.ID = uuid.NewString()
}

func (m *Base) SetID(id string) {
	m.ID = id
}

func NewBase() Base {
	return Base{ID: uuid.NewString()}
}
