package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hirestimer/internal/journal"
	"hirestimer/pkg/hrtime"

	"gotest.tools/v3/assert"
)

func openTestDB(t *testing.T) *journal.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "journal_test.db")

	db, err := journal.Open(context.Background(), journal.Config{Path: dbPath})
	assert.NilError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRecordAndRecent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	transitions := []hrtime.Transition{
		{At: base, From: hrtime.PeriodNone, To: hrtime.Period(4)},
		{At: base.Add(time.Second), From: hrtime.Period(4), To: hrtime.Period(1)},
		{At: base.Add(2 * time.Second), From: hrtime.Period(1), To: hrtime.PeriodNone},
	}
	for _, tr := range transitions {
		assert.NilError(t, db.Record(ctx, tr))
	}

	recent, err := db.Recent(ctx, 2)
	assert.NilError(t, err)
	assert.Equal(t, len(recent), 2)

	// newest first
	assert.Equal(t, recent[0].FromClass, 1)
	assert.Equal(t, recent[0].ToClass, 0)
	assert.Equal(t, recent[0].Direction, "clear")
	assert.Equal(t, recent[1].FromClass, 4)
	assert.Equal(t, recent[1].ToClass, 1)
	assert.Equal(t, recent[1].Direction, "raise")

	assert.Equal(t, recent[0].At.UnixNano(), base.Add(2*time.Second).UnixNano())
}

func TestRecentEmpty(t *testing.T) {
	db := openTestDB(t)

	recent, err := db.Recent(context.Background(), 10)
	assert.NilError(t, err)
	assert.Equal(t, len(recent), 0)
}
