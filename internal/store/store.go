// Package store provides the optional ExecutionRecord persistence
// layer (§3 "Persistence-adjacent types") backing the `store`/`sqlite`
// reference plugin.
package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExecutionRecord is one row describing a single ExecuteFlux call.
type ExecutionRecord struct {
	ID        uuid.UUID `gorm:"type:text;primary_key" json:"id"`
	Endpoint  string    `gorm:"index;not null" json:"endpoint"`
	Method    string    `gorm:"not null" json:"method"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	Status    string    `gorm:"index;not null" json:"status"` // "ok" | "error"
	NodePath  string    `json:"nodePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BeforeCreate assigns a UUID primary key, mirroring the teacher's
// BaseModel.BeforeCreate convention for every gorm model in this repo.
func (r *ExecutionRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Migrate auto-migrates the store schema. Called once by the `store`
// plugin's Setup.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ExecutionRecord{})
}

// Store wraps a *gorm.DB with the narrow operations the `store` plugin
// and its consumers need: record one execution, list the most recent
// ones.
type Store struct {
	db *gorm.DB
}

// New wraps an already-migrated *gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Record inserts one ExecutionRecord.
func (s *Store) Record(rec *ExecutionRecord) error {
	return s.db.Create(rec).Error
}

// Recent returns the most recent executions, newest first, capped at
// limit (0 means a default of 50).
func (s *Store) Recent(limit int) ([]ExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []ExecutionRecord
	err := s.db.Order("created_at desc").Limit(limit).Find(&records).Error
	return records, err
}

// DB returns the underlying *gorm.DB for callers (e.g. the health
// check's ping) that need the raw handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}
