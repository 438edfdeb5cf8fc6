package chat

import (
	"chat-relay/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxDisplayNameLength is counted in characters, not bytes.
const MaxDisplayNameLength = 20

var validate = newValidator()

type displayName struct {
	Name string `validate:"required,max=20,notreserved"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Only fails on an empty or restricted tag name.
	_ = v.RegisterValidation("notreserved", func(fl validator.FieldLevel) bool {
		return !equalFoldASCII(fl.Field().String(), ServerName)
	})
	return v
}

// equalFoldASCII folds ASCII letters only, so "ſerver" is not the reserved name.
func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if toLowerASCII(a[i]) != toLowerASCII(b[i]) {
			return false
		}
	}
	return true
}

func toLowerASCII(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

// ValidateDisplayName trims the proposed name and checks it is not empty,
// not the reserved server name (case-insensitive) and at most MaxDisplayNameLength characters.
func ValidateDisplayName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if err := validate.Struct(displayName{Name: name}); err != nil {
		return name, fmt.Errorf("%w: %v", errors.ErrInvalidDisplayName, err)
	}
	return name, nil
}
