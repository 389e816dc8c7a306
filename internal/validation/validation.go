// Package validation checks user input against the configured bounds.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"murmur/internal/config"
	"murmur/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Rules holds the length bounds, measured in characters.
type Rules struct {
	UsernameMin, UsernameMax int
	TitleMin, TitleMax       int
	TextMin, TextMax         int
	PasswordMin, PasswordMax int
	MessageMin, MessageMax   int
}

// RulesFrom reads the bounds from cfg.
func RulesFrom(cfg *config.Config) Rules {
	return Rules{
		UsernameMin: cfg.UsernameMinL,
		UsernameMax: cfg.UsernameMaxL,
		TitleMin:    cfg.PostTitleMinL,
		TitleMax:    cfg.PostTitleMaxL,
		TextMin:     cfg.PostTextMinL,
		TextMax:     cfg.PostTextMaxL,
		PasswordMin: cfg.PasswordMinL,
		PasswordMax: cfg.PasswordMaxL,
		MessageMin:  cfg.ChatMessageMinL,
		MessageMax:  cfg.ChatMessageMaxL,
	}
}

func length(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min || n > max {
		return models.NewValidationError(fmt.Sprintf("%s must be between %d and %d characters", field, min, max))
	}
	return nil
}

// Username checks length and charset. It cannot start or end with _ or -.
func (r Rules) Username(username string) error {
	if err := length("username", username, r.UsernameMin, r.UsernameMax); err != nil {
		return err
	}
	if !usernamePattern.MatchString(username) {
		return models.NewValidationError("username can only contain letters, numbers, underscores, and hyphens")
	}
	first, last := username[0], username[len(username)-1]
	if first == '_' || first == '-' || last == '_' || last == '-' {
		return models.NewValidationError("username cannot start or end with underscore or hyphen")
	}
	return nil
}

// Password enforces the length cap and requires an uppercase letter, a
// lowercase letter and a digit. Length violations are LIMIT_REACHED.
func (r Rules) Password(password string) error {
	n := utf8.RuneCountInString(password)
	if n < r.PasswordMin || n > r.PasswordMax {
		return models.NewLimitReachedError(fmt.Sprintf("password must be between %d and %d characters", r.PasswordMin, r.PasswordMax))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	if !hasUpper {
		return models.NewValidationError("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return models.NewValidationError("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return models.NewValidationError("password must contain at least one digit")
	}
	return nil
}

// Email is a shape check only: one @, non-empty parts, no whitespace.
func (r Rules) Email(email string) error {
	if len(email) > 254 {
		return models.NewValidationError("email must not exceed 254 characters")
	}
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") ||
		strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") ||
		strings.IndexFunc(email, unicode.IsSpace) >= 0 {
		return models.NewValidationError("invalid email format")
	}
	return nil
}

func (r Rules) Title(title string) error {
	return length("title", title, r.TitleMin, r.TitleMax)
}

func (r Rules) Text(text string) error {
	return length("text", text, r.TextMin, r.TextMax)
}

func (r Rules) Message(text string) error {
	return length("message", text, r.MessageMin, r.MessageMax)
}
