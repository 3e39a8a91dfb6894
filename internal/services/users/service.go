package users

import (
	"context"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/BearBump/FleetTrack/internal/access"
	"github.com/BearBump/FleetTrack/internal/auth"
	"github.com/BearBump/FleetTrack/internal/models"
	"github.com/pkg/errors"
)

const (
	minPasswordLen = 6
	// bcrypt refuses longer inputs
	maxPasswordLen = 72
)

type Repository interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUser(ctx context.Context, id uint64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, role string) ([]*models.User, error)
}

type TokenIssuer interface {
	Issue(u *models.User) (string, error)
}

type CreateInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
}

func New(repo Repository, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens}
}

// GetUser is the user directory lookup used by the journey lifecycle.
func (s *Service) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	return s.repo.GetUser(ctx, id)
}

func (s *Service) List(ctx context.Context, actor models.Actor, role string) ([]*models.User, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	if role != "" && role != models.RoleAdmin && role != models.RoleDriver {
		return nil, &models.ValidationError{Violations: []models.Violation{{Field: "role", Reason: "must be admin or driver"}}}
	}
	return s.repo.ListUsers(ctx, role)
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in CreateInput) (*models.User, error) {
	if err := access.RequireAdmin(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, in)
}

func (s *Service) create(ctx context.Context, in CreateInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = models.RoleDriver
	}

	verr := &models.ValidationError{}
	if in.Name == "" {
		verr.Add("name", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "must be a valid email address")
	}
	switch {
	case len(in.Password) < minPasswordLen:
		verr.Add("password", "must be at least 6 characters")
	case len(in.Password) > maxPasswordLen:
		verr.Add("password", "must be at most 72 bytes")
	}
	if in.Role != models.RoleAdmin && in.Role != models.RoleDriver {
		verr.Add("role", "must be admin or driver")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	})
}

// Login проверяет пароль и выдаёт JWT. Неизвестный email и неверный пароль
// неразличимы для клиента.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, models.ErrNotFound) {
		return "", nil, models.ErrUnauthenticated
	}
	if err != nil {
		return "", nil, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return "", nil, models.ErrUnauthenticated
	}
	token, err := s.tokens.Issue(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" {
		return nil
	}
	_, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err == nil {
		return nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return err
	}
	u, err := s.create(ctx, CreateInput{Name: "Administrator", Email: email, Password: password, Role: models.RoleAdmin})
	if err != nil {
		return errors.Wrap(err, "create bootstrap admin")
	}
	slog.Info("bootstrap admin created", "user_id", u.ID, "email", u.Email)
	return nil
}
