package offlineauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrTokenSecretMissing = errors.New("offline token secret is not set")
	ErrInvalidToken       = errors.New("invalid token")
)

// HashPIN returns the bcrypt hash of pin.
func HashPIN(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(b), err
}

func checkPIN(pin, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

func (s *Service) issueToken(u *User) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrTokenSecretMissing
	}

	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Code)
	}

	now := s.now()
	claims := Claims{
		UserID:  u.ID,
		Roles:   roles,
		Offline: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseOfflineToken verifies a token issued by VerifyPinOffline.
func (s *Service) ParseOfflineToken(tokenStr string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, ErrTokenSecretMissing
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.Offline {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
