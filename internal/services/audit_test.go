package services

import (
	"context"
	"testing"

	"casedesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func actorContext(user *models.User) AuditContext {
	return AuditContext{
		UserID:        &user.ID,
		UserEmail:     user.Email,
		UserName:      user.FullName,
		UserRole:      user.Role,
		Module:        "cases",
		IPAddress:     "10.0.0.1",
		RequestPath:   "/api/cases/1",
		RequestMethod: "PUT",
	}
}

func countEntries(db *gorm.DB) int64 {
	var n int64
	db.Model(&models.AuditLog{}).Count(&n)
	return n
}

func TestRecordPersistsEntryAndChanges(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	changes := DiffUpdate(
		map[string]any{"status": "open"},
		map[string]any{"status": "closed"},
	)
	recorder.Record(context.Background(), actorContext(user), models.ActionUpdate,
		"case", "1", "Server outage", 200, "", changes, map[string]any{"status": "closed"})

	var entry models.AuditLog
	require.NoError(t, db.Preload("Changes").First(&entry).Error)
	assert.Equal(t, models.ActionUpdate, entry.Action)
	assert.Equal(t, "case", entry.EntityType)
	assert.Equal(t, "1", entry.EntityID)
	assert.Equal(t, "Server outage", entry.EntityName)
	assert.Equal(t, user.Email, entry.UserEmail)
	assert.True(t, entry.OperationSuccess)
	assert.NotEmpty(t, entry.OperationContext)

	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "status", entry.Changes[0].FieldName)
	assert.Equal(t, models.ChangeModified, entry.Changes[0].ChangeType)
}

func TestRecordSkipsUnattributableWrites(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	t.Run("missing actor", func(t *testing.T) {
		recorder.Record(context.Background(), AuditContext{}, models.ActionCreate,
			"case", "1", "", 201, "", nil, nil)
		assert.Zero(t, countEntries(db))
	})

	t.Run("missing entity id", func(t *testing.T) {
		recorder.Record(context.Background(), actorContext(user), models.ActionCreate,
			"case", "", "", 201, "", nil, nil)
		assert.Zero(t, countEntries(db))
	})

	t.Run("missing entity type", func(t *testing.T) {
		recorder.Record(context.Background(), actorContext(user), models.ActionCreate,
			"", "1", "", 201, "", nil, nil)
		assert.Zero(t, countEntries(db))
	})
}

func TestRecordDefaultsEntityName(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	recorder.Record(context.Background(), actorContext(user), models.ActionDelete,
		"case", "7", "", 200, "", nil, nil)

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.Equal(t, "case:7", entry.EntityName)
}

func TestRecordFailureIsSwallowed(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	// Close the underlying connection so every write fails.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), actorContext(user), models.ActionCreate,
			"case", "1", "Broken", 201, "", DiffCreate(map[string]any{"title": "Broken"}), nil)
	})
}

func TestRecordFailedOperationKeepsErrorMessage(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	recorder.Record(context.Background(), actorContext(user), models.ActionUpdate,
		"case", "1", "", 500, "boom", nil, nil)

	var entry models.AuditLog
	require.NoError(t, db.First(&entry).Error)
	assert.False(t, entry.OperationSuccess)
	assert.Equal(t, "boom", entry.ErrorMessage)
}

func TestRecordManual(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	user := newTestUser(t, db, "alice")

	file := "doc-7.txt"
	recorder.RecordManual(context.Background(), actorContext(user), models.ActionDownload,
		"knowledge_doc", "7", "Runbook",
		[]FieldChange{{
			FieldName:  "downloaded_file",
			FieldType:  models.FieldTypeString,
			NewValue:   &file,
			ChangeType: models.ChangeAdded,
		}}, nil)

	var entry models.AuditLog
	require.NoError(t, db.Preload("Changes").First(&entry).Error)
	assert.Equal(t, models.ActionDownload, entry.Action)
	assert.True(t, entry.OperationSuccess)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, "downloaded_file", entry.Changes[0].FieldName)
}

func TestSnapshotFetcherRegistry(t *testing.T) {
	db := newTestDB(t)
	recorder := NewAuditRecorder(db, testLogger())
	RegisterSnapshotFetchers(recorder, db)

	caseRecord := &models.Case{Title: "Server outage", Status: "open"}
	require.NoError(t, db.Create(caseRecord).Error)

	snapshot, ok := recorder.Snapshot("case", "1")
	require.True(t, ok)
	assert.Equal(t, "Server outage", snapshot["title"])
	assert.Equal(t, "open", snapshot["status"])

	t.Run("missing record", func(t *testing.T) {
		_, ok := recorder.Snapshot("case", "999")
		assert.False(t, ok)
	})

	t.Run("unmapped type", func(t *testing.T) {
		_, ok := recorder.Snapshot("wormhole", "1")
		assert.False(t, ok)
	})

	t.Run("user snapshots omit credentials", func(t *testing.T) {
		user := newTestUser(t, db, "alice")
		snapshot, ok := recorder.Snapshot("user", "1")
		require.True(t, ok)
		assert.Equal(t, user.Username, snapshot["username"])
		_, hasHash := snapshot["PasswordHash"]
		assert.False(t, hasHash)
		_, hasHashJSON := snapshot["password_hash"]
		assert.False(t, hasHashJSON)
	})
}
