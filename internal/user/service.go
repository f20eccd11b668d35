package user

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-task-go/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-task-go/internal/user/entity"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Store is the persistence the service needs; *repo.UserRepo satisfies it.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
}

// UserService orchestrates registration and password authentication.
type UserService struct {
	store  Store
	hasher PasswordHasher
	// compared against when the email is unknown so both failure paths cost a bcrypt round
	dummyHash string
}

func NewUserService(store Store, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	dummy, err := hasher.Hash("pitchfork-timing-equalizer")
	if err != nil {
		dummy = ""
	}
	return &UserService{store: store, hasher: hasher, dummyHash: dummy}
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user with a hashed password. The plaintext password is
// never stored.
func (s *UserService) Register(ctx context.Context, email, password string) (*entity.User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, apperr.Invalid("email", "is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.Invalid("email", "is not a valid address")
	}
	if password == "" {
		return nil, apperr.Invalid("password", "is required")
	}
	if len(password) > 72 {
		// bcrypt only looks at the first 72 bytes
		return nil, apperr.Invalid("password", "must be at most 72 bytes")
	}

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return nil, apperr.ErrDuplicateEmail
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{Email: email, PasswordHash: hash}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate verifies email and password. Unknown email and wrong password
// both return apperr.ErrInvalidCredentials to avoid user enumeration.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.Verify(s.dummyHash, password)
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}
	if !s.hasher.Verify(u.PasswordHash, password) {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}

// GetByID returns the user with id or apperr.ErrNotFound.
func (s *UserService) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return s.store.GetByID(ctx, id)
}

// GetByEmail returns the user with email or apperr.ErrNotFound.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return s.store.GetByEmail(ctx, NormalizeEmail(email))
}
