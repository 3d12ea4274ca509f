package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dilemma-game/internal/config"
	"github.com/dilemma-game/internal/directory"
	"github.com/dilemma-game/internal/domain"
	"github.com/dilemma-game/internal/store"
)

func newTestService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := directory.New(store.NewMemory(), &config.PresenceConfig{}, logger)
	return New(dir, logger)
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"too short", "ab", "secret1", domain.ErrInvalidUsername},
		{"too long", "abcdefghijklmnopqrstu", "secret1", domain.ErrInvalidUsername},
		{"bad characters", "al ice", "secret1", domain.ErrInvalidUsername},
		{"unicode rejected", "алиса", "secret1", domain.ErrInvalidUsername},
		{"short password", "alice", "12345", domain.ErrInvalidPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.Register(ctx, tc.username, tc.password)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("Register(%q, %q) = %v, want %v", tc.username, tc.password, err, tc.wantErr)
			}
		})
	}

	for _, username := range []string{"abc", "Alice_42", "x-y-z", "twentycharactername_"} {
		if _, err := s.Register(ctx, username, "secret1"); err != nil {
			t.Errorf("Register(%q) should succeed: %v", username, err)
		}
	}
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	id, err := s.Register(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := s.Login(ctx, "alice", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got != id {
		t.Errorf("login id = %q, want %q", got, id)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatal(err)
	}

	if _, err := s.Login(ctx, "alice", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v, want ErrInvalidCredentials", err)
	}
	if _, err := s.Login(ctx, "nobody", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("unknown user: got %v, want ErrInvalidCredentials", err)
	}
	// A syntactically invalid username can never match an account
	if _, err := s.Login(ctx, "a", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Errorf("invalid username: got %v, want ErrInvalidCredentials", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	if _, err := s.Register(ctx, "alice", "secret1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Register(ctx, "alice", "other-password"); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("duplicate register: got %v, want ErrUsernameTaken", err)
	}
}
