package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
)

type IAuthService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (Session, error)
	Login(ctx context.Context, req auth.LoginRequest) (Session, error)
}

// Session is the outcome of a successful register or login.
type Session struct {
	UserID   domain.UserID
	Username string
	Token    string
}

type AuthService struct {
	log      *slog.Logger
	profiles repositories.IProfileRepository
	tokens   *auth.TokenIssuer

	// registration serializes the username check with the insert.
	registration sync.Mutex
}

func NewAuthService(log *slog.Logger, profiles repositories.IProfileRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{log: log, profiles: profiles, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, req auth.RegisterRequest) (Session, error) {
	// Validation comes before any expensive hashing.
	req, err := auth.ValidateRegister(req)
	if err != nil {
		return Session{}, err
	}

	s.registration.Lock()
	defer s.registration.Unlock()

	_, err = s.profiles.GetByUsername(ctx, req.Username)
	switch {
	case err == nil:
		return Session{}, errors.ErrUsernameTaken
	case !stderrors.Is(err, errors.ErrNotFound):
		return Session{}, err
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	profile, err := s.profiles.Create(ctx, domain.Profile{
		Username:     req.Username,
		PasswordHash: hashedPassword,
		DisplayName:  displayName,
	})
	if err != nil {
		return Session{}, err
	}
	s.log.Info("User registered", "user_id", profile.ID, "username", profile.Username)
	return s.open(profile)
}

func (s *AuthService) Login(ctx context.Context, req auth.LoginRequest) (Session, error) {
	req, err := auth.ValidateLogin(req)
	if err != nil {
		return Session{}, err
	}

	profile, err := s.profiles.GetByUsername(ctx, req.Username)
	if stderrors.Is(err, errors.ErrNotFound) {
		// Same answer as a wrong password so usernames cannot be enumerated.
		return Session{}, errors.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if profile.PasswordHash == "" {
		return Session{}, fmt.Errorf("%w: no password hash stored", errors.ErrInternal)
	}

	match, err := auth.ComparePassword(req.Password, profile.PasswordHash)
	if err != nil {
		return Session{}, fmt.Errorf("%w: bad stored hash: %w", errors.ErrInternal, err)
	}
	if !match {
		return Session{}, errors.ErrInvalidCredentials
	}
	return s.open(profile)
}

func (s *AuthService) open(profile domain.Profile) (Session, error) {
	token, err := s.tokens.Issue(profile.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{UserID: profile.ID, Username: profile.Username, Token: token}, nil
}
