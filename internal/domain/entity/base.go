// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Base carries the identity and audit timestamps shared by every persisted entity.
// Entities embed it by value; it has no behaviour of its own.
type Base struct {
	ID        uuid.UUID // The Global Unique Identifier (GUID) of the record.
	CreatedAt time.Time // Timestamp of when the record was first persisted.
	UpdatedAt time.Time // Timestamp of the last modification to the record.
}
