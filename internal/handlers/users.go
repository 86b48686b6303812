package handlers

import (
	"errors"
	"net/http"
	"time"

	"timeline/backend/internal/cache"
	"timeline/backend/internal/models"
	"timeline/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	userDirectoryCacheKey = "users:directory"
	userDirectoryCacheTTL = 30 * time.Second
)

type UserHandler struct {
	db          *gorm.DB
	userService services.UserService
	cache       cache.Cache
}

func NewUserHandler(db *gorm.DB, userService services.UserService, userCache cache.Cache) *UserHandler {
	return &UserHandler{db: db, userService: userService, cache: userCache}
}

// GetUsers serves the id/name directory for the assignment dropdown,
// through a short-lived cache invalidated on registration.
func (h *UserHandler) GetUsers(c *gin.Context) {
	if h.cache != nil {
		if cached, ok := h.cache.Get(userDirectoryCacheKey); ok {
			if users, ok := cached.([]models.UserRef); ok {
				c.JSON(http.StatusOK, gin.H{"users": users})
				return
			}
		}
	}

	users, err := h.userService.ListUsers(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	if h.cache != nil {
		h.cache.Set(userDirectoryCacheKey, users, userDirectoryCacheTTL)
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser serves a single profile. Never cached: a stale directory entry
// is tolerable, a stale profile is confusing.
func (h *UserHandler) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	user, err := h.userService.GetUser(h.db, id)
	if err != nil {
		var notFoundErr *models.NotFoundError
		if errors.As(err, &notFoundErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}
