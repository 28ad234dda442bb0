package jwt

import (
	"errors"
	"strconv"
	"time"

	jw "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID    uint64
	ID        string
	ExpiresAt time.Time
}

type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Make issues an HS256 token whose "sub" is the user id and "jti" a random id.
func (s *Signer) Make(userID uint64) (string, Claims, error) {
	now := s.now()
	c := Claims{UserID: userID, ID: uuid.NewString(), ExpiresAt: now.Add(s.ttl)}
	tok := jw.NewWithClaims(jw.SigningMethodHS256, jw.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		ID:        c.ID,
		IssuedAt:  jw.NewNumericDate(now),
		ExpiresAt: jw.NewNumericDate(c.ExpiresAt),
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, c, nil
}

func (s *Signer) Parse(tok string) (Claims, error) {
	var rc jw.RegisteredClaims
	t, err := jw.ParseWithClaims(tok, &rc, func(t *jw.Token) (any, error) {
		return s.secret, nil
	},
		jw.WithValidMethods([]string{jw.SigningMethodHS256.Alg()}),
		jw.WithExpirationRequired(),
		jw.WithTimeFunc(s.now),
	)
	if err != nil || !t.Valid {
		return Claims{}, ErrInvalidToken
	}
	uid, err := strconv.ParseUint(rc.Subject, 10, 64)
	if err != nil || uid == 0 {
		return Claims{}, ErrInvalidToken
	}
	return Claims{UserID: uid, ID: rc.ID, ExpiresAt: rc.ExpiresAt.Time}, nil
}
