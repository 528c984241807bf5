package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"

	"storefront/internal/apperr"
)

// tokenClaims is what the client can read from an access token. The client
// never holds the signing key, so claims are decoded without verification and
// only used for expiry and identity fallbacks.
type tokenClaims struct {
	Subject   string
	UserID    string
	Email     string
	Role      string
	ExpiresAt time.Time
}

func parseClaims(token string) (tokenClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return tokenClaims{}, err
	}

	var out tokenClaims
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	out.Subject, _ = claims.GetSubject()
	out.UserID, _ = claims["userId"].(string)
	out.Email, _ = claims["email"].(string)
	out.Role, _ = claims["role"].(string)
	return out, nil
}

func (c tokenClaims) id() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make([]string, 0, len(verrs))
		for _, fieldError := range verrs {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required", "required_with", "required_without_all":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		return apperr.Validation("%s", strings.Join(details, ", "))
	}
	return apperr.Validation("%v", err)
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}
