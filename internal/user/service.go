package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicdesk/appointment-queue/internal/auth"
	"github.com/clinicdesk/appointment-queue/internal/config"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrBadRegistrationKey = errors.New("invalid doctor registration key")
	ErrMissingField       = errors.New("name, email and password are required")
)

type Service struct {
	repo Repository
	cfg  config.Config
}

func NewService(repo Repository, cfg config.Config) *Service {
	return &Service{repo: repo, cfg: cfg}
}

// RegisterPatient creates a patient account and signs them in.
func (s *Service) RegisterPatient(ctx context.Context, name, email, password string) (*User, string, error) {
	return s.register(ctx, name, email, password, RolePatient, nil)
}

// RegisterDoctor creates a doctor account. Doctor signup is gated by a
// shared registration key handed out to clinic staff.
func (s *Service) RegisterDoctor(ctx context.Context, name, email, password, specialization, regKey string) (*User, string, error) {
	if regKey != s.cfg.DoctorRegKey {
		return nil, "", ErrBadRegistrationKey
	}
	if strings.TrimSpace(specialization) == "" {
		return nil, "", ErrMissingField
	}
	return s.register(ctx, name, email, password, RoleDoctor, &specialization)
}

func (s *Service) register(ctx context.Context, name, email, password string, role Role, specialization *string) (*User, string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(email) == "" || password == "" {
		return nil, "", ErrMissingField
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:             uuid.New(),
		Name:           name,
		Email:          strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:   hash,
		Role:           role,
		Specialization: specialization,
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

// Login checks credentials for either role and issues a token.
// Lookup failure and password mismatch are indistinguishable to the
// caller.
func (s *Service) Login(ctx context.Context, email, password string) (*User, string, error) {
	u, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("load user: %w", err)
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.token(u)
	if err != nil {
		return nil, "", err
	}

	return u, token, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateProfile changes the display name and, for doctors, the
// specialization. A patient sending a specialization gets it ignored.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, specialization *string) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.Role != RoleDoctor {
		specialization = nil
	}

	return s.repo.UpdateProfile(ctx, id, name, specialization)
}

func (s *Service) ListDoctors(ctx context.Context) ([]User, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Service) token(u *User) (string, error) {
	token, err := auth.MakeToken(u.ID.String(), string(u.Role), s.cfg.JWTSecret, s.cfg.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
