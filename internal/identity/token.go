package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Freeeeeet/felanocare/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

const issuer = "felanocare"

// Claims - полезная нагрузка JWT: sub = uid, role = роль
type Claims struct {
	jwt.RegisteredClaims
	Role model.Role `json:"role"`
}

// TokenIssuer выпускает и проверяет HS256 токены сессий
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue подписывает токен для сессии
func (i *TokenIssuer) Issue(s Session) (string, error) {
	if !s.Valid() {
		return "", fmt.Errorf("issue token: %w", ErrInvalidToken)
	}

	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: s.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Parse проверяет подпись, срок действия и роль
func (i *TokenIssuer) Parse(raw string) (Session, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	s := Session{UserID: claims.Subject, Role: claims.Role}
	if !s.Valid() {
		return Session{}, fmt.Errorf("%w: missing subject or role", ErrInvalidToken)
	}
	return s, nil
}
