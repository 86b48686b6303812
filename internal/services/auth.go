package services

import (
	"errors"
	"time"

	"timeline/backend/internal/models"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

type AuthService interface {
	LoginUser(db *gorm.DB, email, password string) (*models.User, error)
	GenerateToken(userID uuid.UUID, now time.Time) (string, error)
}

// AuthServiceImpl issues stateless HS256 access tokens. There is no refresh
// token store; the identity layer is deliberately thin, its only job here is
// supplying the acting user id to the task commands.
type AuthServiceImpl struct {
	Secret   string
	TokenTTL time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthServiceImpl {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AuthServiceImpl{Secret: secret, TokenTTL: ttl}
}

func VerifyPassword(hashedPassword, plainPassword string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(plainPassword))
	return err == nil
}

func (s *AuthServiceImpl) LoginUser(db *gorm.DB, email, password string) (*models.User, error) {
	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, &models.StorageError{Op: "login", Err: err}
	}
	if !VerifyPassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (s *AuthServiceImpl) GenerateToken(userID uuid.UUID, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"iat":     now.Unix(),
		"exp":     now.Add(s.TokenTTL).Unix(),
		"iss":     "timeline-backend",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.Secret))
}
