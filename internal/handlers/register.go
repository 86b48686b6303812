package handlers

import (
	"errors"
	"net/http"
	"time"

	"timeline/backend/internal/cache"
	"timeline/backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RegisterHandler struct {
	db          *gorm.DB
	userService services.UserService
	cache       cache.Cache
	now         func() time.Time
}

func NewRegisterHandler(db *gorm.DB, userService services.UserService, userCache cache.Cache) *RegisterHandler {
	return &RegisterHandler{db: db, userService: userService, cache: userCache, now: time.Now}
}

func (h *RegisterHandler) Registration(c *gin.Context) {
	var req services.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.userService.RegisterUser(h.db, req, h.now())
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already exists"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register user"})
		}
		return
	}

	// New users must show up in the assignment dropdown right away.
	if h.cache != nil {
		h.cache.Delete(userDirectoryCacheKey)
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.Ref()})
}
