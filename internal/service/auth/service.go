package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskhub-notify/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are issued by the task/user service; this side only verifies them.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   domain.UserRole `json:"role"`
	jwt.RegisteredClaims
}

type Service interface {
	ValidateAccessToken(token string) (*domain.Principal, error)
	IssueAccessToken(userID uuid.UUID, role domain.UserRole, ttl time.Duration) (string, error)
}

type service struct {
	secret []byte
}

func NewService(secret string) Service {
	return &service{secret: []byte(secret)}
}

func (s *service) ValidateAccessToken(tokenString string) (*domain.Principal, error) {
	if len(s.secret) == 0 {
		return nil, ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, ErrInvalidToken
	}

	role := claims.Role
	if !role.IsValid() {
		role = domain.RoleMember
	}
	return &domain.Principal{UserID: claims.UserID, Role: role}, nil
}

// IssueAccessToken signs a token the way the user service does. It exists
// for service-to-service callers and tests.
func (s *service) IssueAccessToken(userID uuid.UUID, role domain.UserRole, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   userID.String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
