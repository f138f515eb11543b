package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/teamplatform/teamplatform/internal/config"
	"github.com/teamplatform/teamplatform/internal/model"
)

// MinPasswordLen is the shortest password accepted for new users.
const MinPasswordLen = 8

// Identity is what an authenticated session yields.
type Identity struct {
	UserID string
	Email  string
	Role   string
}

// HasRole reports whether the identity holds any of roles.
func (i *Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// UserStore is the slice of the record store used for sessions.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUserLastLogin(ctx context.Context, id string) error
}

// AuthService signs users in and validates their session tokens.
type AuthService struct {
	store     UserStore
	jwtSecret []byte
	ttl       time.Duration
	logger    *slog.Logger
}

// NewAuthService creates an AuthService issuing HS256 tokens valid for ttl.
func NewAuthService(store UserStore, jwtSecret string, ttl time.Duration, logger *slog.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
		ttl:       ttl,
		logger:    logger,
	}
}

// TTL returns the lifetime of issued tokens.
func (s *AuthService) TTL() time.Duration { return s.ttl }

// Login verifies email and password and returns the user with a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, "", invalid("credentials", "Email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", unavailable("login", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, "", ErrAccountDisabled
	}

	token, err := s.IssueJWT(user)
	if err != nil {
		return nil, "", err
	}

	if err := s.store.UpdateUserLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("failed to update last login", "user_id", user.ID, "error", err)
	}
	return user, token, nil
}

// IssueJWT creates a signed session token for user.
func (s *AuthService) IssueJWT(user *model.User) (string, error) {
	now := time.Now()
	claims := jwtClaims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    "teamplatform",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateJWT verifies a session token and returns the identity it carries.
func (s *AuthService) ValidateJWT(ctx context.Context, tokenStr string) (*Identity, error) {
	claims := &jwtClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer("teamplatform"))
	if err != nil || !token.Valid {
		return nil, ErrUnauthenticated
	}
	if claims.Subject == "" || !model.ValidRole(claims.Role) {
		return nil, ErrUnauthenticated
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}

type jwtClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// HashPassword returns the bcrypt hash of a new password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLen {
		return "", invalid("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLen))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// NewUser validates sign-up fields and returns a user ready to insert.
func NewUser(email, password, name, role string) (*model.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if !strings.Contains(email, "@") {
		return nil, invalid("email", fmt.Sprintf("Invalid email address: %q", email))
	}
	if role == "" {
		role = model.RoleCoach
	}
	if !model.ValidRole(role) {
		return nil, invalid("role", fmt.Sprintf("Invalid role %q: expected %s or %s", role, model.RoleAdmin, model.RoleCoach))
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(name),
		Role:         role,
		IsActive:     true,
	}, nil
}
