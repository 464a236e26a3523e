package auth

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/dmitrijs2005/recordapi/internal/common"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 128
	minUsernameLen = 3
	maxUsernameLen = 255
	maxEmailLen    = 255
	maxLocalLen    = 64
	maxFullNameLen = 500
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	validate        = validator.New()
)

// ValidatePassword enforces 8..128 characters with at least one letter and
// one digit.
func ValidatePassword(p string) error {
	n := utf8.RuneCountInString(p)
	if n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%w: must be %d to %d characters", common.ErrWeakPassword, minPasswordLen, maxPasswordLen)
	}

	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return fmt.Errorf("%w: must contain a letter and a digit", common.ErrWeakPassword)
	}
	return nil
}

// NormalizeUsername trims and lowercases u and checks its shape.
func NormalizeUsername(u string) (string, error) {
	u = strings.ToLower(strings.TrimSpace(u))
	if n := len(u); n < minUsernameLen || n > maxUsernameLen {
		return "", common.NewValidationError("username",
			fmt.Sprintf("must be %d to %d characters", minUsernameLen, maxUsernameLen))
	}
	if !usernamePattern.MatchString(u) {
		return "", common.NewValidationError("username", "may contain only letters, digits, '_' and '-'")
	}
	return u, nil
}

// NormalizeEmail trims e, checks it is a plausible address and lowercases
// the domain. The local part keeps its case.
func NormalizeEmail(e string) (string, error) {
	invalid := common.NewValidationError("email", "must be a valid email address")

	e = strings.TrimSpace(e)
	if len(e) > maxEmailLen || validate.Var(e, "required,email") != nil {
		return "", invalid
	}
	at := strings.LastIndexByte(e, '@')
	if at < 1 || at > maxLocalLen {
		return "", invalid
	}
	return e[:at] + "@" + strings.ToLower(e[at+1:]), nil
}

// ValidateFullName bounds the optional display name.
func ValidateFullName(name *string) error {
	if name != nil && utf8.RuneCountInString(*name) > maxFullNameLen {
		return common.NewValidationError("full_name", fmt.Sprintf("must be at most %d characters", maxFullNameLen))
	}
	return nil
}
