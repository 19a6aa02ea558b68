package credentials

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNoEmployeeClaim is returned when a token carries no employee id
	ErrNoEmployeeClaim = errors.New("token carries no employee id claim")
	// ErrTokenExpired is returned when a token's exp claim has passed
	ErrTokenExpired = errors.New("token has expired")
)

// employeeClaims are the claims that may carry the employee id, in
// precedence order.
var employeeClaims = []string{"employeeId", "employee_id", "sub"}

// EmployeeID reads the employee id from a bearer token. The signature is
// not checked here.
func EmployeeID(token string, now time.Time) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", fmt.Errorf("failed to read token expiry: %w", err)
	}
	if exp != nil && now.After(exp.Time) {
		return "", fmt.Errorf("%w at %s", ErrTokenExpired, exp.Time.Format(time.RFC3339))
	}

	for _, name := range employeeClaims {
		switch v := claims[name].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				log.Debug().Str("claim", name).Msg("employee id read from token")
				return v, nil
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}

	return "", ErrNoEmployeeClaim
}
