package handlers

import (
	"errors"
	"strconv"

	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
)

type CaseHandler struct {
	caseService *services.CaseService
}

func NewCaseHandler() *CaseHandler {
	return &CaseHandler{
		caseService: services.NewCaseService(),
	}
}

type CreateCaseRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	AssigneeID  uint   `json:"assignee_id"`
}

// GetCases returns all cases, optionally filtered by status
func (h *CaseHandler) GetCases(c *gin.Context) {
	cases, err := h.caseService.GetCases(c.Query("status"))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get cases", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"cases": cases})
}

// GetCase returns a specific case
func (h *CaseHandler) GetCase(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	caseRecord, err := h.caseService.GetCase(id)
	if err != nil {
		c.JSON(404, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, caseRecord)
}

// CreateCase creates a new case
func (h *CaseHandler) CreateCase(c *gin.Context) {
	var req CreateCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	ownerID, _ := userID.(uint)

	caseRecord := &models.Case{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		OwnerID:     ownerID,
		AssigneeID:  req.AssigneeID,
	}

	if err := h.caseService.CreateCase(caseRecord); err != nil {
		c.JSON(500, gin.H{"error": "Failed to create case", "details": err.Error()})
		return
	}

	c.JSON(201, caseRecord)
}

// UpdateCase applies a partial update to a case
func (h *CaseHandler) UpdateCase(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := filterUpdates(body, "title", "description", "status", "priority", "assignee_id")
	caseRecord, err := h.caseService.UpdateCase(id, updates)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to update case", "details": err.Error()})
		return
	}

	c.JSON(200, caseRecord)
}

// DeleteCase deletes a case
func (h *CaseHandler) DeleteCase(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.caseService.DeleteCase(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete case", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Case deleted successfully"})
}

// GetTodos returns to-dos, optionally filtered by case
func (h *CaseHandler) GetTodos(c *gin.Context) {
	var caseID uint
	if v := c.Query("case_id"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(400, gin.H{"error": "Invalid case_id"})
			return
		}
		caseID = uint(parsed)
	}

	todos, err := h.caseService.GetTodos(caseID)
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to get todos", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"todos": todos})
}

type CreateTodoRequest struct {
	CaseID uint   `json:"case_id"`
	Title  string `json:"title" binding:"required"`
}

// CreateTodo creates a new to-do
func (h *CaseHandler) CreateTodo(c *gin.Context) {
	var req CreateTodoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	userID, _ := c.Get("user_id")
	ownerID, _ := userID.(uint)

	todo := &models.Todo{
		CaseID:  req.CaseID,
		Title:   req.Title,
		OwnerID: ownerID,
	}

	if err := h.caseService.CreateTodo(todo); err != nil {
		c.JSON(500, gin.H{"error": "Failed to create todo", "details": err.Error()})
		return
	}

	c.JSON(201, todo)
}

// UpdateTodo applies a partial update to a to-do
func (h *CaseHandler) UpdateTodo(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	updates := filterUpdates(body, "title", "done", "case_id")
	todo, err := h.caseService.UpdateTodo(id, updates)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to update todo", "details": err.Error()})
		return
	}

	c.JSON(200, todo)
}

// DeleteTodo deletes a to-do
func (h *CaseHandler) DeleteTodo(c *gin.Context) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return
	}

	if err := h.caseService.DeleteTodo(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			c.JSON(404, gin.H{"error": err.Error()})
			return
		}
		c.JSON(500, gin.H{"error": "Failed to delete todo", "details": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Todo deleted successfully"})
}
