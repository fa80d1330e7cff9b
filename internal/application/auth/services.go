package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bryanwahyu/bloodreport-ai/internal/application"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
)

var (
	ErrInvalidCredentials = errors.New("incorrect credentials")
	ErrInvalidToken       = errors.New("could not validate credentials")
)

// RegisterInput is the sign-up form, already validated by the handler.
type RegisterInput struct {
	Username     string
	Email        string
	MobileNumber string
	Password     string
	FullName     string
}

// Token is the login payload.
type Token struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresIn   int         `json:"expires_in"`
	User        *users.User `json:"user"`
}

type Service struct {
	Users  users.Repository
	Clock  application.Clock
	Log    *zap.Logger
	secret []byte
	ttl    time.Duration
}

func NewService(repo users.Repository, secret string, ttl time.Duration, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{Users: repo, Clock: application.SystemClock{}, Log: log, secret: []byte(secret), ttl: ttl}
}

// Register creates an account and returns its id.
func (s *Service) Register(ctx context.Context, in RegisterInput) (int64, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.MobileNumber = strings.TrimSpace(in.MobileNumber)

	exists, err := s.Users.Exists(ctx, in.Username, in.Email, in.MobileNumber)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, users.ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u := &users.User{
		Username:       in.Username,
		Email:          in.Email,
		MobileNumber:   in.MobileNumber,
		HashedPassword: string(hash),
		FullName:       strings.TrimSpace(in.FullName),
		IsActive:       true,
		CreatedAt:      s.Clock.Now().UTC(),
	}
	// the unique indexes still catch a concurrent duplicate
	if err := s.Users.Create(ctx, u); err != nil {
		return 0, err
	}
	s.Log.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username))
	return u.ID, nil
}

// Login accepts a username, email or mobile number as identifier.
func (s *Service) Login(ctx context.Context, identifier, password string) (*Token, error) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		// emails are stored lowercased
		identifier = strings.ToLower(identifier)
	}
	if identifier == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issue(u.Username)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.ttl.Seconds()),
		User:        u,
	}, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *Service) Authenticate(ctx context.Context, token string) (*users.User, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.Clock.Now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	u, err := s.Users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidToken
	}
	return u, nil
}

func (s *Service) issue(subject string) (string, error) {
	now := s.Clock.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
