package handlers

import (
	"errors"
	"net/http"
	"time"

	"timeline/backend/internal/middleware"
	"timeline/backend/internal/models"
	"timeline/backend/internal/services"
	"timeline/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"gorm.io/gorm"
)

type TaskHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	now         func() time.Time
}

func NewTaskHandler(db *gorm.DB, taskService services.TaskService) *TaskHandler {
	return &TaskHandler{db: db, taskService: taskService, now: time.Now}
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	var in struct {
		Title      string  `json:"title" binding:"required"`
		UserID     *string `json:"user_id"`
		Start      *string `json:"start"`
		Expiration *string `json:"expiration"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	actingUser, ok := middleware.ActingUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	input := validation.CreateTaskInput{Title: in.Title}
	var err error
	if input.UserID, err = parseOptionalUUID(in.UserID, "user_id"); err != nil {
		handleTaskError(c, err)
		return
	}
	if input.Start, err = parseOptionalTime(in.Start, "start"); err != nil {
		handleTaskError(c, err)
		return
	}
	if input.Expiration, err = parseOptionalTime(in.Expiration, "expiration"); err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(h.db, actingUser, input, h.now())
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *TaskHandler) UpdateTitle(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in struct {
		Title  string  `json:"title" binding:"required"`
		UserID *string `json:"user_id"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, err := parseOptionalUUID(in.UserID, "user_id")
	if err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.UpdateTitle(h.db, id, in.Title, userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) PatchTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in struct {
		Title       *string `json:"title"`
		UserID      *string `json:"user_id"`
		Completed   *bool   `json:"completed"`
		CompletedAt *string `json:"completed_at"`
		Expiration  *string `json:"expiration"`
		CreatedAt   *string `json:"created_at"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := validation.TaskPatch{
		Title:     in.Title,
		Completed: in.Completed,
	}
	var err error
	if patch.UserID, err = parseOptionalUUID(in.UserID, "user_id"); err != nil {
		handleTaskError(c, err)
		return
	}
	if parsed, err := parseOptionalTime(in.CompletedAt, "completed_at"); err != nil {
		handleTaskError(c, err)
		return
	} else {
		patch.CompletedAt = parsed
	}
	if parsed, err := parseOptionalTime(in.Expiration, "expiration"); err != nil {
		handleTaskError(c, err)
		return
	} else {
		patch.Expiration = parsed
	}
	if parsed, err := parseOptionalTime(in.CreatedAt, "created_at"); err != nil {
		handleTaskError(c, err)
		return
	} else {
		patch.CreatedAt = parsed
	}

	task, err := h.taskService.UpdateTaskFields(h.db, id, patch, h.now())
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := h.taskService.ToggleComplete(h.db, id, h.now())
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) CompleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in struct {
		CompletedAt string `json:"completed_at" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	completedAt, err := parseTime(in.CompletedAt, "completed_at")
	if err != nil {
		handleTaskError(c, err)
		return
	}

	task, err := h.taskService.CompleteTask(h.db, id, completedAt, h.now())
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(h.db, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

func (h *TaskHandler) GetTasks(c *gin.Context) {
	query := services.ListQuery{
		Search:   c.Query("search"),
		Page:     intQuery(c, "page", 1),
		PerPage:  intQuery(c, "per_page", services.DefaultPerPage),
		BasePath: c.Request.URL.Path,
	}
	if c.Query("scope") == "mine" {
		if actingUser, ok := middleware.ActingUser(c); ok {
			query.OwnerID = &actingUser
		}
	}

	page, err := h.taskService.ListTasks(h.db, query)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TaskHandler) GetStats(c *gin.Context) {
	var scope *uuid.UUID
	if c.Query("scope") == "mine" {
		if actingUser, ok := middleware.ActingUser(c); ok {
			scope = &actingUser
		}
	}

	counts, err := h.taskService.CountByCompletion(h.db, scope)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func handleTaskError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	var notFoundErr *models.NotFoundError
	var referenceErr *models.ReferenceError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
	case errors.As(err, &referenceErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{
			"field":  referenceErr.Field,
			"reason": "unknown_reference",
		}})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
