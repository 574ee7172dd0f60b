package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/CrowderSoup/admin-panel/database"
)

const bcryptCost = 12

var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStore looks up accounts for login.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*database.User, error)
}

// Session is the identity carried by a verified token.
type Session struct {
	UserID   int64
	Username string
}

type AuthService struct {
	users     UserStore
	jwtSecret []byte
	ttl       time.Duration
}

// NewAuthService builds the service. An empty secret is replaced by a random
// one, so tokens are only valid for this process.
func NewAuthService(users UserStore, secret string, ttl time.Duration) (*AuthService, error) {
	if secret == "" {
		generated, err := generateSecureToken(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = generated
	}
	return &AuthService{
		users:     users,
		jwtSecret: []byte(secret),
		ttl:       ttl,
	}, nil
}

func (s *AuthService) TTL() time.Duration {
	return s.ttl
}

// Login checks a username/password pair and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, username, password string) (*database.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, "", ErrInvalidCredentials
	}
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		log.Info().Str("username", username).Msg("Login rejected")
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.CreateJWT(Session{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateJWT generates a session token
func (s *AuthService) CreateJWT(sess Session) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":      sess.UserID,
		"username": sess.Username,
		"exp":      time.Now().Add(s.ttl).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// VerifyJWT verifies a session token and returns its identity
func (s *AuthService) VerifyJWT(tokenString string) (Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Session{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Session{}, errors.New("invalid token claims")
	}
	username, ok := claims["username"].(string)
	if !ok || username == "" {
		return Session{}, errors.New("username claim missing")
	}
	// JSON numbers decode as float64.
	uid, ok := claims["uid"].(float64)
	if !ok {
		return Session{}, errors.New("uid claim missing")
	}
	return Session{UserID: int64(uid), Username: username}, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateTempPassword returns a random password for seeded accounts.
func GenerateTempPassword() (string, error) {
	return generateSecureToken(12)
}

func generateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
