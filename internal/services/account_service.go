package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/records"
)

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already exists")

// Session is the result of a successful login.
type Session struct {
	User      core.User
	Token     string
	ExpiresAt time.Time
}

// AccountService registers users and exchanges credentials for tokens.
type AccountService struct {
	users  records.UserStore
	hasher auth.Hasher
	tokens *auth.TokenIssuer
	logger *log.Logger
}

func NewAccountService(users records.UserStore, hasher auth.Hasher, tokens *auth.TokenIssuer, logger *log.Logger) *AccountService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &AccountService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
	}
}

// Register creates a user and returns its id.
func (s *AccountService) Register(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if err := core.ValidateCredentials(username, password); err != nil {
		return 0, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	id, err := s.users.CreateUser(ctx, username, hash)
	if errors.Is(err, records.ErrConflict) {
		return 0, ErrUsernameTaken
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	s.logger.InfoContext(ctx, "User registered", log.FieldUserID, id, log.FieldOperation, log.OpRegister)
	return id, nil
}

// Login checks the credentials and issues a session token. Unknown users
// and wrong passwords both yield auth.ErrInvalidCredentials.
func (s *AccountService) Login(ctx context.Context, username, password string) (Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return Session{}, auth.ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	user, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, records.ErrNotFound) {
		return Session{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if err := s.hasher.Check(user.PasswordHash, password); err != nil {
		s.logger.WarnContext(ctx, "Login rejected", log.FieldUserID, user.ID, log.FieldOperation, log.OpLogin)
		return Session{}, err
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return Session{}, err
	}

	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, user.ID, log.FieldOperation, log.OpLogin)
	return Session{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to a user id.
func (s *AccountService) Authenticate(token string) (int64, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return 0, err
	}
	return claims.UserID()
}
