package accounts

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"trustscan/internal/auth"
	"trustscan/internal/domain"
	"trustscan/internal/ports"
	"trustscan/internal/validate"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,min=2"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is what register and login hand back to the client.
type Session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type Service struct {
	users  ports.UserRepository
	tokens *auth.Tokens
	clock  clockwork.Clock
	cost   int
	admins map[string]bool
}

func New(users ports.UserRepository, tokens *auth.Tokens, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		users:  users,
		tokens: tokens,
		clock:  clock,
		cost:   bcrypt.DefaultCost,
	}
}

// WithAdmins grants the admin role to accounts registered with one of
// the given emails.
func (s *Service) WithAdmins(emails []string) *Service {
	s.admins = make(map[string]bool, len(emails))
	for _, e := range emails {
		s.admins[strings.ToLower(strings.TrimSpace(e))] = true
	}
	return s
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, domain.Invalid(domain.ErrInvalidInput, "password must be at most 72 bytes")
	}
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		Role:         s.roleFor(in.Email),
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrEmailTaken) {
			return nil, domain.Invalid(domain.ErrEmailTaken, "User already exists")
		}
		return nil, errors.Wrap(err, "create user")
	}
	return s.session(user)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, in.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup user")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return s.session(user)
}

// Me returns the account behind a verified identity.
func (s *Service) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	return user, err
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.users.Count(ctx)
}

func (s *Service) roleFor(email string) domain.Role {
	if s.admins[email] {
		return domain.RoleAdmin
	}
	return domain.RoleUser
}

func (s *Service) session(user *domain.User) (*Session, error) {
	tok, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &Session{Token: tok, User: user}, nil
}
