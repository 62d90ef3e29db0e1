package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"casedesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type seedEntry struct {
	userEmail string
	action    models.AuditAction
	module    string
	entity    string
	entityID  string
	success   bool
	age       time.Duration
	changes   []models.AuditFieldChange
}

func seedAuditEntry(t *testing.T, db *gorm.DB, s seedEntry) models.AuditLog {
	t.Helper()

	if s.userEmail == "" {
		s.userEmail = "alice@example.com"
	}
	if s.module == "" {
		s.module = "cases"
	}
	if s.entity == "" {
		s.entity = "case"
	}
	if s.entityID == "" {
		s.entityID = "1"
	}

	entry := models.AuditLog{
		ID:               uuid.NewString(),
		UserEmail:        s.userEmail,
		UserName:         s.userEmail,
		UserRole:         "agent",
		Action:           s.action,
		EntityType:       s.entity,
		EntityID:         s.entityID,
		EntityName:       s.entity + ":" + s.entityID,
		Module:           s.module,
		OperationSuccess: s.success,
		Changes:          s.changes,
	}
	require.NoError(t, db.Create(&entry).Error)

	if s.age > 0 {
		require.NoError(t, db.Model(&models.AuditLog{}).Where("id = ?", entry.ID).
			UpdateColumn("created_at", time.Now().Add(-s.age)).Error)
	}
	return entry
}

func strPtr(s string) *string { return &s }

func TestAuditQueryList(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditQueryService(db, testLogger())

	seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true, age: 3 * time.Hour})
	seedAuditEntry(t, db, seedEntry{action: models.ActionUpdate, success: true, age: 2 * time.Hour})
	seedAuditEntry(t, db, seedEntry{action: models.ActionDelete, success: false, age: time.Hour,
		userEmail: "bob@example.com", module: "users", entity: "user"})

	t.Run("unfiltered, newest first", func(t *testing.T) {
		entries, total, err := svc.List(AuditFilter{})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, entries, 3)
		assert.Equal(t, models.ActionDelete, entries[0].Action)
		assert.Equal(t, models.ActionCreate, entries[2].Action)
	})

	t.Run("filter by action", func(t *testing.T) {
		entries, total, err := svc.List(AuditFilter{Action: models.ActionUpdate})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ActionUpdate, entries[0].Action)
	})

	t.Run("filter by module and success", func(t *testing.T) {
		failed := false
		entries, total, err := svc.List(AuditFilter{Module: "users", Success: &failed})
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, entries, 1)
		assert.Equal(t, "bob@example.com", entries[0].UserEmail)
	})

	t.Run("time window", func(t *testing.T) {
		from := time.Now().Add(-150 * time.Minute)
		entries, total, err := svc.List(AuditFilter{From: &from})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, entries, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		entries, total, err := svc.List(AuditFilter{Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.EqualValues(t, 3, total)
		require.Len(t, entries, 1)
		assert.Equal(t, models.ActionCreate, entries[0].Action)
	})

	t.Run("page size is capped", func(t *testing.T) {
		entries, _, err := svc.List(AuditFilter{PageSize: 100000})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})
}

func TestEntityHistoryOrdering(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditQueryService(db, testLogger())

	seedAuditEntry(t, db, seedEntry{action: models.ActionUpdate, success: true, age: time.Hour, entityID: "9"})
	seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true, age: 2 * time.Hour, entityID: "9"})
	seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true, entityID: "10"})

	entries, err := svc.EntityHistory("case", "9")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionCreate, entries[0].Action, "history replays oldest first")
	assert.Equal(t, models.ActionUpdate, entries[1].Action)
}

func TestAuditStats(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditQueryService(db, testLogger())

	seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true})
	seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true, userEmail: "bob@example.com"})
	seedAuditEntry(t, db, seedEntry{action: models.ActionDelete, success: false, module: "users"})

	stats, err := svc.Stats(nil, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.Total)
	assert.EqualValues(t, 1, stats.Failed)
	assert.EqualValues(t, 2, stats.ByAction[string(models.ActionCreate)])
	assert.EqualValues(t, 1, stats.ByAction[string(models.ActionDelete)])
	assert.EqualValues(t, 2, stats.ByModule["cases"])
	assert.EqualValues(t, 1, stats.ByModule["users"])

	require.NotEmpty(t, stats.ByUser)
	assert.Equal(t, "alice@example.com", stats.ByUser[0].UserEmail, "most active user first")
	assert.EqualValues(t, 2, stats.ByUser[0].Count)
}

func TestExportMasksSensitiveValues(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditQueryService(db, testLogger())

	seedAuditEntry(t, db, seedEntry{
		action:  models.ActionUpdate,
		success: true,
		changes: []models.AuditFieldChange{
			{
				FieldName:  "status",
				FieldType:  models.FieldTypeString,
				OldValue:   strPtr("open"),
				NewValue:   strPtr("closed"),
				ChangeType: models.ChangeModified,
			},
			{
				FieldName:   "password",
				FieldType:   models.FieldTypeString,
				OldValue:    strPtr("old-secret"),
				NewValue:    strPtr("new-secret"),
				ChangeType:  models.ChangeModified,
				IsSensitive: true,
			},
		},
	})

	t.Run("json keeps nesting and masks", func(t *testing.T) {
		name, content, contentType, err := svc.Export(AuditFilter{}, "json")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(name, "audit-export-"))
		assert.True(t, strings.HasSuffix(name, ".json"))
		assert.Equal(t, "application/json", contentType)

		var exported []ExportedEntry
		require.NoError(t, json.Unmarshal(content, &exported))
		require.Len(t, exported, 1)
		require.Len(t, exported[0].Changes, 2)

		byField := map[string]ExportedChange{}
		for _, ch := range exported[0].Changes {
			byField[ch.FieldName] = ch
		}
		assert.Equal(t, "closed", *byField["status"].NewValue)
		assert.Equal(t, models.SensitiveValueMask, *byField["password"].OldValue)
		assert.Equal(t, models.SensitiveValueMask, *byField["password"].NewValue)
		assert.NotContains(t, string(content), "new-secret")
	})

	t.Run("csv is flattened one row per change", func(t *testing.T) {
		name, content, contentType, err := svc.Export(AuditFilter{}, "csv")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ".csv"))
		assert.Equal(t, "text/csv", contentType)

		lines := strings.Split(strings.TrimSpace(string(content)), "\n")
		require.Len(t, lines, 3, "header plus one row per field change")
		assert.Contains(t, lines[0], "field_name")
		assert.Contains(t, string(content), "closed")
		assert.Contains(t, string(content), models.SensitiveValueMask)
		assert.NotContains(t, string(content), "new-secret")
	})

	t.Run("xlsx produces a workbook", func(t *testing.T) {
		name, content, contentType, err := svc.Export(AuditFilter{}, "xlsx")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(name, ".xlsx"))
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", contentType)
		// xlsx files are zip archives.
		assert.True(t, bytes.HasPrefix(content, []byte("PK")))
		assert.NotContains(t, string(content), "new-secret")
	})

	t.Run("unknown format rejected", func(t *testing.T) {
		_, _, _, err := svc.Export(AuditFilter{}, "pdf")
		assert.ErrorIs(t, err, ErrInvalidExportFormat)
	})
}

func TestCleanupRetention(t *testing.T) {
	db := newTestDB(t)
	svc := NewAuditQueryService(db, testLogger())

	t.Run("out-of-range is rejected, not clamped", func(t *testing.T) {
		_, err := svc.Cleanup(29)
		assert.ErrorIs(t, err, ErrInvalidRetention)
		_, err = svc.Cleanup(2556)
		assert.ErrorIs(t, err, ErrInvalidRetention)
	})

	t.Run("deletes old entries and their changes", func(t *testing.T) {
		old := seedAuditEntry(t, db, seedEntry{
			action: models.ActionUpdate, success: true, age: 40 * 24 * time.Hour,
			changes: []models.AuditFieldChange{{
				FieldName: "status", FieldType: models.FieldTypeString,
				NewValue: strPtr("open"), ChangeType: models.ChangeAdded,
			}},
		})
		recent := seedAuditEntry(t, db, seedEntry{action: models.ActionCreate, success: true})

		deleted, err := svc.Cleanup(30)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		var remaining []models.AuditLog
		require.NoError(t, db.Find(&remaining).Error)
		require.Len(t, remaining, 1)
		assert.Equal(t, recent.ID, remaining[0].ID)

		var orphaned int64
		db.Model(&models.AuditFieldChange{}).Where("audit_log_id = ?", old.ID).Count(&orphaned)
		assert.Zero(t, orphaned, "field changes cascade with their entry")
	})
}
