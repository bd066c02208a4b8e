package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultRetention is how long a tombstoned row survives before the
// sweeper removes it permanently.
const DefaultRetention = 30 * 24 * time.Hour

// BaseModel provides shared fields for all persistent models.
type BaseModel struct {
	ID        string    `gorm:"primaryKey;type:uuid" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures UUID identifiers are generated automatically.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// EntityID exposes the primary key for generic code.
func (m *BaseModel) EntityID() string { return m.ID }

// Tombstone marks a row deleted without removing it. A row is active while
// DeletedAt is NULL; once PurgeAfter has passed the sweeper hard-deletes it.
type Tombstone struct {
	DeletedAt  *time.Time `gorm:"index" json:"-"`
	PurgeAfter *time.Time `gorm:"index" json:"-"`
}

// Deleted reports whether the row has been soft-deleted.
func (t *Tombstone) Deleted() bool {
	return t.DeletedAt != nil
}

// MarkDeleted stamps the tombstone with the deletion time and the moment
// after which the row may be purged.
func (t *Tombstone) MarkDeleted(now time.Time, retention time.Duration) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	deleted := now
	purge := now.Add(retention)
	t.DeletedAt = &deleted
	t.PurgeAfter = &purge
}

// Restore clears the tombstone, reactivating the row.
func (t *Tombstone) Restore() {
	t.DeletedAt = nil
	t.PurgeAfter = nil
}

// Meta exposes the tombstone for generic code.
func (t *Tombstone) Meta() *Tombstone { return t }

// SoftDeletable is the capability set required by the generic CRUD layer:
// an identity plus tombstone access.
type SoftDeletable interface {
	EntityID() string
	Meta() *Tombstone
}
