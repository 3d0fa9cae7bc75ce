package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotConfigured      = errors.New("console credentials are not configured")
)

// Claims представляет JWT claims сессии консоли
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Service управляет доступом оператора к консоли. Один оператор,
// учётные данные из окружения (username + bcrypt hash пароля),
// сессия - HS256 JWT. Сессия с бэкендом агента - отдельная
// (internal/session).
type Service struct {
	jwtSecret    []byte
	tokenTTL     time.Duration
	username     string
	passwordHash string
}

// NewService создаёт auth сервис консоли
func NewService(jwtSecret, username, passwordHash string, tokenTTL time.Duration) *Service {
	return &Service{
		jwtSecret:    []byte(jwtSecret),
		tokenTTL:     tokenTTL,
		username:     username,
		passwordHash: passwordHash,
	}
}

// Authenticate проверяет учётные данные оператора и выдаёт токен
func (s *Service) Authenticate(username, password string) (string, error) {
	if s.username == "" || s.passwordHash == "" {
		return "", ErrNotConfigured
	}

	if username != s.username {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.generateToken(username)
}

// HashPassword хеширует пароль для CONSOLE_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// generateToken создаёт JWT токен сессии консоли
func (s *Service) generateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString(s.jwtSecret)
}

// ValidateToken проверяет JWT токен и возвращает claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}

		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
