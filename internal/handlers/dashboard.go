package handlers

import (
	"net/http"

	"timeline/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// DashboardHandler serves the combined payload behind the dashboard and
// activity pages: a page of tasks, the todo/done counters, and the user
// directory for the assignment dropdown.
type DashboardHandler struct {
	db          *gorm.DB
	taskService services.TaskService
	userService services.UserService
}

func NewDashboardHandler(db *gorm.DB, taskService services.TaskService, userService services.UserService) *DashboardHandler {
	return &DashboardHandler{db: db, taskService: taskService, userService: userService}
}

func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	// The dashboard shows the five most recent tasks; the activity page
	// asks for its own page size.
	perPage := intQuery(c, "per_page", 5)

	page, err := h.taskService.ListTasks(h.db, services.ListQuery{
		Search:   c.Query("search"),
		Page:     intQuery(c, "page", 1),
		PerPage:  perPage,
		BasePath: c.Request.URL.Path,
	})
	if err != nil {
		handleTaskError(c, err)
		return
	}

	counts, err := h.taskService.CountByCompletion(h.db, nil)
	if err != nil {
		handleTaskError(c, err)
		return
	}

	users, err := h.userService.ListUsers(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks":  page,
		"stats":  counts,
		"users":  users,
		"search": c.Query("search"),
	})
}
