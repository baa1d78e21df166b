// Package sqlite implements the `store`/`sqlite` reference plugin
// (§3/§4.4/§9): an ExecutionRecord table on gorm.io/driver/sqlite,
// exposed to action handlers through store.Store's Record/Recent and
// created with gorm auto-migrate (store.Migrate). The executor does not write records
// itself; a row is written only when a caller invokes Record.
package sqlite

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/orbitflux/flux/internal/plugin"
	"github.com/orbitflux/flux/internal/store"
)

// Store is the `store`/`sqlite` Plugin implementation.
type Store struct {
	db  *gorm.DB
	api *store.Store
}

// New returns a fresh, un-set-up Store instance.
func New() plugin.Plugin {
	return &Store{}
}

func (s *Store) Name() string { return "store" }

// Setup opens the sqlite file named by "path" (or ":memory:" when
// "path" is unset) and migrates the ExecutionRecord schema.
func (s *Store) Setup(ctx context.Context, config map[string]any) error {
	path, _ := config["path"].(string)
	if path == "" {
		path = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("sqlite plugin: open %s: %w", path, err)
	}
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("sqlite plugin: migrate: %w", err)
	}

	s.db = db
	s.api = store.New(db)
	return nil
}

func (s *Store) Teardown(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetClient returns the *store.Store API (Record/Recent), not the raw
// *gorm.DB — action handlers interact with the narrower store surface
// rather than writing arbitrary SQL through ctx.plugins.store.
func (s *Store) GetClient() any {
	if s.api == nil {
		panic(&plugin.NotSetUpError{LogicalKey: "store"})
	}
	return s.api
}
