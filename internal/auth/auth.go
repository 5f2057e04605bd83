package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/frahmantamala/opsboard/internal"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are carried in the signed session cookie.
type Claims struct {
	Username    string `json:"username"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the request principal.
func (c *Claims) Principal() (*internal.Principal, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, internal.ErrInvalidSession
	}
	return &internal.Principal{
		UserID:      id,
		Username:    c.Username,
		Role:        c.Role,
		DisplayName: c.DisplayName,
	}, nil
}

// TokenManager issues and validates session tokens.
type TokenManager interface {
	Issue(p *internal.Principal) (token string, expiresAt time.Time, err error)
	Validate(token string) (*Claims, error)
}

// JWTSessions signs session tokens with HS256.
type JWTSessions struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewJWTSessions(secret string, ttl time.Duration) *JWTSessions {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &JWTSessions{
		Secret: []byte(secret),
		TTL:    ttl,
		now:    time.Now,
	}
}

func (j *JWTSessions) Issue(p *internal.Principal) (string, time.Time, error) {
	now := j.clock()
	expiresAt := now.Add(j.TTL)

	claims := &Claims{
		Username:    p.Username,
		Role:        p.Role,
		DisplayName: p.DisplayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

func (j *JWTSessions) clock() time.Time {
	if j.now == nil {
		return time.Now()
	}
	return j.now()
}

func (j *JWTSessions) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithTimeFunc(j.clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, internal.ErrSessionExpired
		}
		return nil, internal.ErrInvalidSession
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Username == "" {
		return nil, internal.ErrInvalidSession
	}
	return claims, nil
}
