package services

import (
	"errors"
	"time"

	"timeline/backend/internal/models"

	"github.com/gofrs/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrDuplicateEmail = errors.New("email already exists")

type RegistrationRequest struct {
	Name     string `json:"name" binding:"required,min=1,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type UserService interface {
	RegisterUser(db *gorm.DB, req RegistrationRequest, now time.Time) (*models.User, error)
	ListUsers(db *gorm.DB) ([]models.UserRef, error)
	GetUser(db *gorm.DB, id uuid.UUID) (*models.User, error)
}

type UserServiceImpl struct{}

func NewUserService() *UserServiceImpl {
	return &UserServiceImpl{}
}

func (s *UserServiceImpl) RegisterUser(db *gorm.DB, req RegistrationRequest, now time.Time) (*models.User, error) {
	var existing models.User
	if err := db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &models.StorageError{Op: "check email", Err: err}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		ID:        uuid.Must(uuid.NewV4()),
		Name:      req.Name,
		Email:     req.Email,
		Password:  string(hashed),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, &models.StorageError{Op: "create user", Err: err}
	}
	return &user, nil
}

// ListUsers returns the id/name directory backing the assignment dropdown.
func (s *UserServiceImpl) ListUsers(db *gorm.DB) ([]models.UserRef, error) {
	var users []models.User
	if err := db.Order("name ASC").Find(&users).Error; err != nil {
		return nil, &models.StorageError{Op: "list users", Err: err}
	}

	refs := make([]models.UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, users[i].Ref())
	}
	return refs, nil
}

func (s *UserServiceImpl) GetUser(db *gorm.DB, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := db.First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &models.NotFoundError{Entity: "user", ID: id}
		}
		return nil, &models.StorageError{Op: "get user", Err: err}
	}
	return &user, nil
}
