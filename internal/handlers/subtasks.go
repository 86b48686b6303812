package handlers

import (
	"net/http"
	"time"

	"timeline/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SubTaskHandler struct {
	db             *gorm.DB
	subTaskService services.SubTaskService
	now            func() time.Time
}

func NewSubTaskHandler(db *gorm.DB, subTaskService services.SubTaskService) *SubTaskHandler {
	return &SubTaskHandler{db: db, subTaskService: subTaskService, now: time.Now}
}

func (h *SubTaskHandler) AddSubTask(c *gin.Context) {
	taskID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var in struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	subtask, err := h.subTaskService.AddSubTask(h.db, taskID, in.Title, h.now())
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"subtask": subtask})
}

func (h *SubTaskHandler) ToggleSubTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	subtask, err := h.subTaskService.ToggleSubTask(h.db, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subtask": subtask})
}

func (h *SubTaskHandler) DeleteSubTask(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.subTaskService.DeleteSubTask(h.db, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusNoContent, nil)
}
