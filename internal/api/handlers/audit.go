package handlers

import (
	"errors"
	"strconv"
	"time"

	"casedesk/internal/api/middleware"
	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	query    *services.AuditQueryService
	recorder *services.AuditRecorder
}

func NewAuditHandler(query *services.AuditQueryService, recorder *services.AuditRecorder) *AuditHandler {
	return &AuditHandler{
		query:    query,
		recorder: recorder,
	}
}

// GetEntries returns one page of audit entries matching the query filters
func (h *AuditHandler) GetEntries(c *gin.Context) {
	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}

	entries, total, err := h.query.List(filter)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to query audit log", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"entries": maskEntries(entries),
		"total":   total,
		"page":    filter.Page,
	})
}

// GetEntityHistory returns the full audit history of one entity, oldest first
func (h *AuditHandler) GetEntityHistory(c *gin.Context) {
	entityType := c.Param("type")
	entityID := c.Param("id")
	if entityType == "" || entityID == "" {
		c.JSON(400, gin.H{"error": "Entity type and id are required"})
		return
	}

	entries, err := h.query.EntityHistory(entityType, entityID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to query entity history", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"entries": maskEntries(entries)})
}

// GetStats returns aggregate ledger statistics
func (h *AuditHandler) GetStats(c *gin.Context) {
	from, to, ok := parseTimeWindow(c)
	if !ok {
		return
	}

	stats, err := h.query.Stats(from, to)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to compute statistics", "details": err.Error()})
		return
	}

	c.JSON(200, stats)
}

// Export streams the filtered ledger in the requested format and records an
// EXPORT audit entry.
func (h *AuditHandler) Export(c *gin.Context) {
	filter, ok := parseAuditFilter(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	filename, content, contentType, err := h.query.Export(filter, format)
	if err != nil {
		if errors.Is(err, services.ErrInvalidExportFormat) {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to export audit log", "details": err.Error()})
		return
	}

	h.recorder.RecordManual(c.Request.Context(), middleware.AuditContextFrom(c), models.ActionExport,
		"audit_log", filename, filename,
		[]services.FieldChange{{
			FieldName:  "export_format",
			FieldType:  models.FieldTypeString,
			NewValue:   &format,
			ChangeType: models.ChangeAdded,
		}}, nil)

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(200, contentType, content)
}

// Cleanup deletes entries older than the requested retention window
func (h *AuditHandler) Cleanup(c *gin.Context) {
	days, err := strconv.Atoi(c.Query("days"))
	if err != nil {
		c.JSON(400, gin.H{"error": "days query parameter is required"})
		return
	}

	deleted, err := h.query.Cleanup(days)
	if err != nil {
		if errors.Is(err, services.ErrInvalidRetention) {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to clean up audit log", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Audit log cleaned up", "deleted": deleted})
}

// entryResponse is the list/history shape: the stored entry with sensitive
// change values masked.
type entryResponse struct {
	models.AuditLog
	Changes []changeResponse `json:"changes"`
}

type changeResponse struct {
	FieldName   string            `json:"field_name"`
	FieldType   models.FieldType  `json:"field_type"`
	OldValue    *string           `json:"old_value"`
	NewValue    *string           `json:"new_value"`
	ChangeType  models.ChangeType `json:"change_type"`
	IsSensitive bool              `json:"is_sensitive"`
}

func maskEntries(entries []models.AuditLog) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, entry := range entries {
		item := entryResponse{AuditLog: entry, Changes: make([]changeResponse, 0, len(entry.Changes))}
		item.AuditLog.Changes = nil
		for i := range entry.Changes {
			ch := &entry.Changes[i]
			item.Changes = append(item.Changes, changeResponse{
				FieldName:   ch.FieldName,
				FieldType:   ch.FieldType,
				OldValue:    ch.DisplayOldValue(),
				NewValue:    ch.DisplayNewValue(),
				ChangeType:  ch.ChangeType,
				IsSensitive: ch.IsSensitive,
			})
		}
		out = append(out, item)
	}
	return out
}

func parseAuditFilter(c *gin.Context) (services.AuditFilter, bool) {
	var filter services.AuditFilter

	if v := c.Query("user_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid user_id"})
			return filter, false
		}
		userID := uint(parsed)
		filter.UserID = &userID
	}
	filter.Action = models.AuditAction(c.Query("action"))
	filter.EntityType = c.Query("entity_type")
	filter.Module = c.Query("module")
	if v := c.Query("success"); v != "" {
		success := v == "true"
		filter.Success = &success
	}

	from, to, ok := parseTimeWindow(c)
	if !ok {
		return filter, false
	}
	filter.From = from
	filter.To = to

	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "50"))

	return filter, true
}

func parseTimeWindow(c *gin.Context) (from, to *time.Time, ok bool) {
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid from timestamp, expected RFC3339"})
			return nil, nil, false
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid to timestamp, expected RFC3339"})
			return nil, nil, false
		}
		to = &t
	}
	return from, to, true
}
