package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"casedesk/internal/api/middleware"
	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
)

type KnowledgeHandler struct {
	knowledgeService *services.KnowledgeService
	recorder         *services.AuditRecorder
}

func NewKnowledgeHandler(recorder *services.AuditRecorder) *KnowledgeHandler {
	return &KnowledgeHandler{
		knowledgeService: services.NewKnowledgeService(),
		recorder:         recorder,
	}
}

// GetNotes returns notes, optionally filtered by case
func (h *KnowledgeHandler) GetNotes(c *gin.Context) {
	var caseID uint
	if v := c.Query("case_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid case_id"})
			return
		}
		caseID = uint(parsed)
	}

	notes, err := h.knowledgeService.GetNotes(caseID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get notes", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"notes": notes})
}

type CreateNoteRequest struct {
	CaseID uint   `json:"case_id"`
	Title  string `json:"title"`
	Body   string `json:"body" binding:"required"`
}

// CreateNote creates a new note
func (h *KnowledgeHandler) CreateNote(c *gin.Context) {
	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	authorID, _ := userID.(uint)

	note := &models.Note{
		CaseID:   req.CaseID,
		Title:    req.Title,
		Body:     req.Body,
		AuthorID: authorID,
	}

	if err := h.knowledgeService.CreateNote(note); err != nil {
		c.JSON(500, gin.H{"error": "Failed to create note", "details": err.Error()})
		return
	}

	c.JSON(201, note)
}

// UpdateNote applies a partial update to a note
func (h *KnowledgeHandler) UpdateNote(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := filterUpdates(body, "title", "body", "case_id")
	note, err := h.knowledgeService.UpdateNote(id, updates)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to update note", "details": err.Error()})
		return
	}

	c.JSON(200, note)
}

// DeleteNote deletes a note
func (h *KnowledgeHandler) DeleteNote(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.knowledgeService.DeleteNote(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete note", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Note deleted successfully"})
}

// GetDocs returns knowledge documents
func (h *KnowledgeHandler) GetDocs(c *gin.Context) {
	docs, err := h.knowledgeService.GetDocs(c.Query("published") == "true")
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get documents", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"documents": docs})
}

// GetDoc returns a specific knowledge document and records a VIEW audit entry
func (h *KnowledgeHandler) GetDoc(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.knowledgeService.GetDoc(id)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	h.recorder.RecordManual(c.Request.Context(), middleware.AuditContextFrom(c), models.ActionView,
		"knowledge_doc", strconv.FormatUint(uint64(doc.ID), 10), doc.Title, nil, nil)

	c.JSON(200, doc)
}

type CreateDocRequest struct {
	Title     string   `json:"title" binding:"required"`
	Body      string   `json:"body"`
	Tags      []string `json:"tags"`
	Published bool     `json:"published"`
}

// CreateDoc creates a new knowledge document
func (h *KnowledgeHandler) CreateDoc(c *gin.Context) {
	var req CreateDocRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	authorID, _ := userID.(uint)

	doc := &models.KnowledgeDoc{
		Title:     req.Title,
		Body:      req.Body,
		Tags:      models.StringArray(req.Tags),
		Published: req.Published,
		AuthorID:  authorID,
	}

	if err := h.knowledgeService.CreateDoc(doc); err != nil {
		c.JSON(500, gin.H{"error": "Failed to create document", "details": err.Error()})
		return
	}

	c.JSON(201, doc)
}

// UpdateDoc applies a partial update to a knowledge document
func (h *KnowledgeHandler) UpdateDoc(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := filterUpdates(body, "title", "body", "published", "tags")
	if raw, ok := updates["tags"].([]any); ok {
		tags := make(models.StringArray, 0, len(raw))
		for _, t := range raw {
			if s, ok := t.(string); ok {
				tags = append(tags, s)
			}
		}
		updates["tags"] = tags
	}

	doc, err := h.knowledgeService.UpdateDoc(id, updates)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to update document", "details": err.Error()})
		return
	}

	c.JSON(200, doc)
}

// DeleteDoc deletes a knowledge document
func (h *KnowledgeHandler) DeleteDoc(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.knowledgeService.DeleteDoc(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete document", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Document deleted successfully"})
}

// DownloadDoc serves a knowledge document as a plain-text attachment and
// records a DOWNLOAD audit entry.
func (h *KnowledgeHandler) DownloadDoc(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	doc, err := h.knowledgeService.GetDoc(id)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	filename := fmt.Sprintf("doc-%d.txt", doc.ID)
	content := doc.Title + "\n" + strings.Repeat("=", len(doc.Title)) + "\n\n" + doc.Body + "\n"

	h.recorder.RecordManual(c.Request.Context(), middleware.AuditContextFrom(c), models.ActionDownload,
		"knowledge_doc", strconv.FormatUint(uint64(doc.ID), 10), doc.Title,
		[]services.FieldChange{{
			FieldName:  "downloaded_file",
			FieldType:  models.FieldTypeString,
			NewValue:   &filename,
			ChangeType: models.ChangeAdded,
		}}, nil)

	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(200, "text/plain; charset=utf-8", []byte(content))
}
