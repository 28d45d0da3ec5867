// Package auth issues and resolves player sessions. Users sign up with an email and password,
// and each sign-in yields an opaque bearer token kept in Redis.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/merryquiz/internal/domain"
	"github.com/victornm/merryquiz/internal/errors"
)

const (
	MinPasswordLength = 6

	// RedirectAfterSignIn is where clients go once a session exists.
	RedirectAfterSignIn = "/"

	defaultTokenTTL = 7 * 24 * time.Hour
)

type Store interface {
	CreateUser(ctx context.Context, u domain.User, passwordHash []byte) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, []byte, error)
}

type Config struct {
	Store    Store
	Redis    redis.UniversalClient
	Prefix   string
	TokenTTL time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Service struct {
	store    Store
	redis    redis.UniversalClient
	prefix   string
	tokenTTL time.Duration
	cost     int
}

func NewService(c Config) *Service {
	s := &Service{
		store:    c.Store,
		redis:    c.Redis,
		prefix:   c.Prefix,
		tokenTTL: c.TokenTTL,
		cost:     c.BcryptCost,
	}
	if s.tokenTTL <= 0 {
		s.tokenTTL = defaultTokenTTL
	}
	if s.cost == 0 {
		s.cost = bcrypt.DefaultCost
	}
	return s
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Session struct {
	Token    string       `json:"token"`
	User     *domain.User `json:"user"`
	Redirect string       `json:"redirect"`
}

// SignUp registers a user together with an empty profile and signs them in.
func (s *Service) SignUp(ctx context.Context, req Credentials) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < MinPasswordLength {
		return nil, errors.InvalidArgument("password must be at least %d characters", MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("hash password: %w", err))
	}

	u := domain.User{ID: uuid.NewString(), Email: email}
	if err := s.store.CreateUser(ctx, u, hash); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "auth: user signed up", "user", u.ID)
	return s.issue(ctx, &u)
}

// SignIn checks the credentials and starts a session.
func (s *Service) SignIn(ctx context.Context, req Credentials) (*Session, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}

	u, hash, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(hash, []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	return s.issue(ctx, u)
}

// CurrentUser resolves a token. A missing, unknown or expired token yields no user and no error.
func (s *Service) CurrentUser(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, nil
	}

	id, err := s.redis.Get(ctx, s.key(token)).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.New(errors.CodeUnavailable, errors.WithCause(fmt.Errorf("get session: %w", err)))
	}

	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, errors.CodeNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	return u, nil
}

// SignOut ends the session. Signing out twice is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	if err := s.redis.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) issue(ctx context.Context, u *domain.User) (*Session, error) {
	token := uuid.NewString()
	if err := s.redis.Set(ctx, s.key(token), u.ID, s.tokenTTL).Err(); err != nil {
		return nil, errors.New(errors.CodeUnavailable, errors.WithCause(fmt.Errorf("store session: %w", err)))
	}

	return &Session{
		Token:    token,
		User:     u,
		Redirect: RedirectAfterSignIn,
	}, nil
}

func (s *Service) key(token string) string {
	return fmt.Sprintf("%s:auth:%s", s.prefix, token)
}

var errInvalidCredentials = errors.New(errors.CodeUnauthenticated, errors.WithMessagef("invalid email or password"))

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", errors.InvalidArgument("invalid email: %q", email)
	}
	return strings.ToLower(addr.Address), nil
}
