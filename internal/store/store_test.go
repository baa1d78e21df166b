package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return New(db)
}

func TestRecordAssignsID(t *testing.T) {
	s := newTestStore(t)
	rec := &ExecutionRecord{
		Endpoint:  "/greet",
		Method:    "POST",
		StartedAt: time.Now(),
		EndedAt:   time.Now(),
		Status:    "ok",
	}
	require.NoError(t, s.Record(rec))
	assert.NotEqual(t, uuid.Nil, rec.ID)
}

func TestRecentHonoursLimit(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Record(&ExecutionRecord{
			Endpoint: "/greet", Method: "POST", Status: "ok",
			StartedAt: time.Now(), EndedAt: time.Now(),
		}))
	}

	records, err := s.Recent(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecentDefaultsLimit(t *testing.T) {
	s := newTestStore(t)
	records, err := s.Recent(0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
