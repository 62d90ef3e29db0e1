package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastAuditEntry(t *testing.T, action models.AuditAction) models.AuditLog {
	t.Helper()
	var entry models.AuditLog
	require.NoError(t, models.DB.Preload("Changes").
		Where("action = ?", action).
		Order("created_at DESC").
		First(&entry).Error)
	return entry
}

func TestAuditTrailRoutes(t *testing.T) {
	cfg := setupTestDB(t)
	defer cleanupTestDB(t, cfg)

	authService := services.NewAuthService(cfg)
	createTestUser(t, authService, "alice", "alice123", "agent")
	createTestUser(t, authService, "admin", "admin123", "admin")

	router := setupTestRouter(cfg)
	agent := login(t, router, "alice", "alice123")
	admin := login(t, router, "admin", "admin123")

	var caseID uint

	t.Run("POST /api/cases - Create is audited with ADDED changes", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/cases", agent.Token, map[string]any{
			"title":    "Server outage",
			"status":   "open",
			"priority": "high",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var created models.Case
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		caseID = created.ID

		entry := lastAuditEntry(t, models.ActionCreate)
		assert.Equal(t, "case", entry.EntityType)
		assert.Equal(t, fmt.Sprintf("%d", caseID), entry.EntityID)
		assert.Equal(t, "Server outage", entry.EntityName)
		assert.Equal(t, "alice@example.com", entry.UserEmail)
		assert.Equal(t, "cases", entry.Module)
		assert.True(t, entry.OperationSuccess)
		require.NotEmpty(t, entry.Changes)
		for _, ch := range entry.Changes {
			assert.Equal(t, models.ChangeAdded, ch.ChangeType)
			assert.Nil(t, ch.OldValue)
		}
	})

	t.Run("PUT /api/cases/:id - Update is audited as a field diff", func(t *testing.T) {
		w := doRequest(router, "PUT", fmt.Sprintf("/api/cases/%d", caseID), agent.Token, map[string]any{
			"status": "closed",
		})
		require.Equal(t, http.StatusOK, w.Code)

		entry := lastAuditEntry(t, models.ActionUpdate)
		assert.Equal(t, "case", entry.EntityType)
		require.Len(t, entry.Changes, 1, "only the submitted field is diffed")

		ch := entry.Changes[0]
		assert.Equal(t, "status", ch.FieldName)
		assert.Equal(t, models.ChangeModified, ch.ChangeType)
		assert.Equal(t, "open", *ch.OldValue)
		assert.Equal(t, "closed", *ch.NewValue)
		assert.False(t, ch.IsSensitive)
	})

	t.Run("PUT /api/cases/:id - No-op update leaves no audit row", func(t *testing.T) {
		var before int64
		models.DB.Model(&models.AuditLog{}).Where("action = ?", models.ActionUpdate).Count(&before)

		w := doRequest(router, "PUT", fmt.Sprintf("/api/cases/%d", caseID), agent.Token, map[string]any{
			"status": "closed",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var after int64
		models.DB.Model(&models.AuditLog{}).Where("action = ?", models.ActionUpdate).Count(&after)
		assert.Equal(t, before, after)
	})

	t.Run("PUT /api/cases/:id - Failed update leaves no audit row", func(t *testing.T) {
		var before int64
		models.DB.Model(&models.AuditLog{}).Count(&before)

		w := doRequest(router, "PUT", "/api/cases/99999", agent.Token, map[string]any{
			"status": "closed",
		})
		require.Equal(t, http.StatusNotFound, w.Code)

		var after int64
		models.DB.Model(&models.AuditLog{}).Count(&after)
		assert.Equal(t, before, after)
	})

	t.Run("GET /api/audit - Lists entries with filters", func(t *testing.T) {
		w := doRequest(router, "GET", "/api/audit?entity_type=case", agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Entries []json.RawMessage `json:"entries"`
			Total   int64             `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.EqualValues(t, 2, resp.Total, "one create and one update")
		assert.Len(t, resp.Entries, 2)
	})

	t.Run("GET /api/audit/entity/:type/:id - History replays oldest first", func(t *testing.T) {
		w := doRequest(router, "GET", fmt.Sprintf("/api/audit/entity/case/%d", caseID), agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Entries []struct {
				Action models.AuditAction `json:"action"`
			} `json:"entries"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Entries, 2)
		assert.Equal(t, models.ActionCreate, resp.Entries[0].Action)
		assert.Equal(t, models.ActionUpdate, resp.Entries[1].Action)
	})

	t.Run("GET /api/audit/stats - Aggregates the ledger", func(t *testing.T) {
		w := doRequest(router, "GET", "/api/audit/stats", agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var stats services.AuditStats
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
		assert.Positive(t, stats.Total)
		assert.Positive(t, stats.ByAction[string(models.ActionLogin)])
		assert.Positive(t, stats.ByModule["cases"])
	})

	t.Run("GET /api/audit/export - Streams a file and records EXPORT", func(t *testing.T) {
		w := doRequest(router, "GET", "/api/audit/export?format=csv", agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=audit-export-")
		assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")

		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		assert.Greater(t, len(lines), 1, "header plus data rows")

		entry := lastAuditEntry(t, models.ActionExport)
		assert.Equal(t, "audit_log", entry.EntityType)
		assert.Equal(t, "alice@example.com", entry.UserEmail)
	})

	t.Run("GET /api/audit/export - Unknown format rejected", func(t *testing.T) {
		w := doRequest(router, "GET", "/api/audit/export?format=pdf", agent.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DELETE /api/audit/cleanup - Forbidden (non-admin)", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/api/audit/cleanup?days=60", agent.Token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("DELETE /api/audit/cleanup - Rejects out-of-range retention", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/api/audit/cleanup?days=10", admin.Token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("DELETE /api/audit/cleanup - Success (admin)", func(t *testing.T) {
		w := doRequest(router, "DELETE", "/api/audit/cleanup?days=60", admin.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp, "deleted")
		assert.EqualValues(t, 0, resp["deleted"], "no entries older than the cutoff yet")
	})

	t.Run("GET /api/knowledge/:id - View is audited", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/knowledge", agent.Token, map[string]any{
			"title": "Outage runbook",
			"body":  "1. breathe",
		})
		require.Equal(t, http.StatusCreated, w.Code)
		var doc models.KnowledgeDoc
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

		w = doRequest(router, "GET", fmt.Sprintf("/api/knowledge/%d", doc.ID), agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		entry := lastAuditEntry(t, models.ActionView)
		assert.Equal(t, "knowledge_doc", entry.EntityType)
		assert.Equal(t, fmt.Sprintf("%d", doc.ID), entry.EntityID)
		assert.Equal(t, "Outage runbook", entry.EntityName)
		assert.Equal(t, "alice@example.com", entry.UserEmail)
	})

	t.Run("DELETE /api/cases/:id - Delete is audited with REMOVED changes", func(t *testing.T) {
		w := doRequest(router, "DELETE", fmt.Sprintf("/api/cases/%d", caseID), agent.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)

		entry := lastAuditEntry(t, models.ActionDelete)
		assert.Equal(t, "case", entry.EntityType)
		assert.Equal(t, "Server outage", entry.EntityName)
		require.NotEmpty(t, entry.Changes)
		for _, ch := range entry.Changes {
			assert.Equal(t, models.ChangeRemoved, ch.ChangeType)
			assert.Nil(t, ch.NewValue)
		}
	})

	t.Run("PUT /api/users/:id - Sensitive values are masked in responses", func(t *testing.T) {
		w := doRequest(router, "POST", "/api/users", admin.Token, map[string]any{
			"username":  "carol",
			"email":     "carol@example.com",
			"full_name": "Carol Tester",
			"password":  "carol-secret-123",
			"role":      "agent",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		entry := lastAuditEntry(t, models.ActionCreate)
		require.Equal(t, "user", entry.EntityType)

		w = doRequest(router, "GET", "/api/audit?entity_type=user", admin.Token, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.NotContains(t, w.Body.String(), "carol-secret-123",
			"raw passwords never appear in audit read responses")
	})
}
