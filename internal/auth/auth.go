// Package auth validates credentials and delegates identity storage to the
// player directory.
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/domain"
)

// Service provides registration and login
type Service struct {
	directory *directory.Directory
	logger    *slog.Logger
}

// New creates an auth service
func New(dir *directory.Directory, logger *slog.Logger) *Service {
	return &Service{directory: dir, logger: logger}
}

func validUsername(username string) bool {
	if len(username) < 3 || len(username) > 20 {
		return false
	}
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}

// Register creates a new player and returns its id
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	if !validUsername(username) {
		return "", domain.ErrInvalidUsername
	}
	if len(password) < 6 {
		return "", domain.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	id, err := s.directory.Create(ctx, username, string(hash))
	if err != nil {
		return "", err
	}
	return id, nil
}

// Login verifies credentials, marks the player online and returns its id
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	if !validUsername(username) {
		return "", domain.ErrInvalidCredentials
	}

	id, err := s.directory.VerifyPassword(ctx, username, password)
	if err != nil {
		return "", err
	}
	if err := s.directory.SetOnline(ctx, id, true); err != nil {
		return "", err
	}

	s.logger.Info("player logged in", "player_id", id, "username", username)
	return id, nil
}

// Logout marks the player offline
func (s *Service) Logout(ctx context.Context, playerID string) error {
	return s.directory.SetOnline(ctx, playerID, false)
}
