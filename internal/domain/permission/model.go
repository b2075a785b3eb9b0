package permission

import (
	"time"

	"github.com/google/uuid"
)

// Permission is an atomic, named capability such as "billing.update".
// Names are globally unique and never change once registered.
type Permission struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
