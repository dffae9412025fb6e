// Package auth implements credential verification and session token
// issuance for staff accounts.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/dgi-platform/rendezvous-service/internal/domain/user"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/storage"
)

// Credential failures surfaced to the login endpoint. Message texts are the
// user-facing French responses.
var (
	ErrMissingCredentials = errors.New("Email et mot de passe requis")
	ErrUserNotFound       = errors.New("Utilisateur non trouvé")
	ErrBadPassword        = errors.New("Mot de passe incorrect")
	ErrInvalidRole        = errors.New("Rôle invalide")
)

// ErrInvalidToken is returned by VerifyToken on signature failure or expiry.
var ErrInvalidToken = errors.New("Token invalide")

// IsCredentialError reports whether err is a login rejection rather than a
// downstream failure.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrBadPassword) ||
		errors.Is(err, ErrInvalidRole)
}

// Claims are the session token claims: subject identity and role.
type Claims struct {
	UserID int64  `json:"id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Service verifies credentials and issues HS256 session tokens.
type Service struct {
	users    storage.UserStore
	secret   []byte
	tokenTTL time.Duration
	log      *logging.Logger
	now      func() time.Time
}

// New constructs an auth service. A zero ttl defaults to 24 hours.
func New(users storage.UserStore, secret string, ttl time.Duration, log *logging.Logger) *Service {
	if log == nil {
		log = logging.NewDefault("auth")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		users:    users,
		secret:   []byte(secret),
		tokenTTL: ttl,
		log:      log,
		now:      time.Now,
	}
}

// Login verifies the credential pair and returns a signed token with the
// account summary. All rejection paths satisfy IsCredentialError.
func (s *Service) Login(ctx context.Context, email, motDePasse string) (string, user.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || motDePasse == "" {
		return "", user.User{}, ErrMissingCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.WithContext(ctx).WithField("email", email).Warn("login attempt for unknown email")
			return "", user.User{}, ErrUserNotFound
		}
		return "", user.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.MotDePasse), []byte(motDePasse)); err != nil {
		s.log.WithContext(ctx).WithField("email", email).Warn("login attempt with wrong password")
		return "", user.User{}, ErrBadPassword
	}

	if !user.ValidRole(u.Role) {
		s.log.WithContext(ctx).WithField("email", email).WithField("role", u.Role).Warn("login attempt with unrecognized role")
		return "", user.User{}, ErrInvalidRole
	}

	token, err := s.issueToken(u)
	if err != nil {
		return "", user.User{}, fmt.Errorf("sign token: %w", err)
	}

	s.log.WithContext(ctx).
		WithField("user_id", u.ID).
		WithField("role", u.Role).
		Info("login succeeded")

	u.MotDePasse = ""
	return token, u, nil
}

func (s *Service) issueToken(u user.User) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: u.ID,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken parses and validates a session token, returning its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
