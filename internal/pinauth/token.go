package pinauth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const managerTokenTTL = 10 * time.Minute

// TokenIssuer mints short-lived manager tokens after a successful PIN
// verification so manager-only endpoints don't replay the PIN on every call.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

func (t *TokenIssuer) Issue(managerID, managerName string, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"manager_id":   managerID,
		"manager_name": managerName,
		"role":         "manager",
		"iat":          now.Unix(),
		"exp":          now.Add(managerTokenTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}
