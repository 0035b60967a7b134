package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Session is what a successful login hands back.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type Service struct {
	users  store.UserStore
	tokens *TokenIssuer
	audit  *audit.Recorder
	log    logrus.FieldLogger
}

func NewService(users store.UserStore, tokens *TokenIssuer, recorder *audit.Recorder, log logrus.FieldLogger) *Service {
	return &Service{users: users, tokens: tokens, audit: recorder, log: log.WithField("module", "auth")}
}

func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.FindUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	// This compares the input "password" with the "hash" from DB
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	if _, err := s.audit.Record(ctx, audit.Entry{
		ActionType: models.ActionLogin,
		Resource:   "users",
		RecordID:   audit.RecordID(user.ID),
		Details:    map[string]any{"username": user.Username},
		ActorID:    user.ID,
	}); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("login not audited")
	}
	return &Session{Token: token, User: user}, nil
}

// Register creates a user with a bcrypt hashed password.
func (s *Service) Register(ctx context.Context, username, password, role string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.Invalid("username", "is required")
	}
	if len(password) < 6 {
		return nil, apperr.Invalid("password", "must be at least 6 characters")
	}
	if role != models.RoleAdmin && role != models.RoleStaff {
		return nil, apperr.Invalid("role", "must be admin or staff")
	}
	if _, err := s.users.FindUserByUsername(ctx, username); err == nil {
		return nil, apperr.Invalid("username", "already exists")
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user := &models.User{Username: username, PasswordHash: string(hashed), Role: role}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if _, err := s.audit.Record(ctx, audit.Entry{
		ActionType: models.ActionCreate,
		Resource:   "users",
		RecordID:   audit.RecordID(user.ID),
		After:      map[string]any{"username": user.Username, "role": user.Role},
		ActorID:    user.ID,
	}); err != nil {
		s.log.WithError(err).WithField("user_id", user.ID).Warn("user creation not audited")
	}
	return user, nil
}
