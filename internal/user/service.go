package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/tasker/internal/apperr"
	"github.com/alecgard/tasker/internal/auth"
)

const maxNameLength = 50

// Repository is the persistence the credential service needs.
type Repository interface {
	Register(ctx context.Context, name, email, passwordHash string) (*Registration, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByName(ctx context.Context, name string) (*User, error)
}

// ErrInvalidCredentials is returned by Login for any lookup or password
// failure so callers cannot tell which one happened.
var ErrInvalidCredentials = apperr.New(apperr.KindInvalidCredential, "invalid credentials")

// Service registers users and exchanges credentials for sessions.
type Service struct {
	repo        Repository
	sessions    auth.SessionStore
	minPassword int
	bcryptCost  int
	dummyHash   []byte
}

func NewService(repo Repository, sessions auth.SessionStore, minPassword, bcryptCost int) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	// Compared against when the login identifier matches no user, so both
	// failure paths spend the same time in bcrypt. With a cost in range the
	// only failure is a password over 72 bytes, which this one is not.
	dummy, err := bcrypt.GenerateFromPassword([]byte("tasker-dummy-password"), bcryptCost)
	if err != nil {
		panic(fmt.Sprintf("user: generating dummy hash: %v", err))
	}
	return &Service{
		repo:        repo,
		sessions:    sessions,
		minPassword: minPassword,
		bcryptCost:  bcryptCost,
		dummyHash:   dummy,
	}
}

func (s *Service) validate(in RegisterInput) (RegisterInput, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)

	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return in, apperr.Validation("email is malformed")
	}
	if utf8.RuneCountInString(in.Password) < s.minPassword {
		return in, apperr.Validation(fmt.Sprintf("password must be at least %d characters", s.minPassword))
	}
	if in.Name == "" {
		return in, apperr.Validation("username is required")
	}
	if utf8.RuneCountInString(in.Name) > maxNameLength {
		return in, apperr.Validation(fmt.Sprintf("username must be at most %d characters", maxNameLength))
	}
	if strings.Contains(in.Name, "@") {
		// Login treats identifiers containing "@" as emails.
		return in, apperr.Validation("username must not contain @")
	}
	return in, nil
}

// Register creates a user together with its General group.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Registration, error) {
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return s.repo.Register(ctx, in.Name, in.Email, string(hash))
}

// Login verifies the credentials and issues a session. identifier is an
// email when it contains "@" and a username otherwise.
func (s *Service) Login(ctx context.Context, identifier, password string) (*User, string, error) {
	identifier = strings.TrimSpace(identifier)

	var (
		u   *User
		err error
	)
	if strings.Contains(identifier, "@") {
		u, err = s.repo.GetByEmail(ctx, strings.ToLower(identifier))
	} else {
		u, err = s.repo.GetByName(ctx, identifier)
	}
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			return nil, "", err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, "", ErrInvalidCredentials
	}

	if !CheckPassword(u, password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.sessions.Create(ctx, u.Identity())
	if err != nil {
		return nil, "", fmt.Errorf("creating session: %w", err)
	}
	return u, token, nil
}

// Logout destroys the session. Logging out of an absent session succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Destroy(ctx, token)
}

// Get returns the user with the given id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// CheckPassword verifies a plaintext password against the user's stored hash.
func CheckPassword(u *User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}
