package middleware

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/ahanafabid01/Next-Youth-sub001/internal/model"
)

const (
	maxContentLength = 10000
	maxIDLength      = 64
)

// ValidateMessageContent validates message text. Empty text is allowed
// here; whether a draft may be empty depends on its attachment.
func ValidateMessageContent(content string) error {
	if len(content) > maxContentLength {
		return errors.New("content exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("content must be valid UTF-8")
	}
	return nil
}

// ValidateID validates a conversation or message id.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if len(id) > maxIDLength {
		return errors.New("id exceeds maximum length")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return errors.New("invalid id format")
		}
	}
	return nil
}

// ValidateDeleteScope parses the deleteFor query parameter.
func ValidateDeleteScope(s string) (model.DeleteScope, error) {
	scope := model.DeleteScope(s)
	if !scope.Valid() {
		return "", errors.New("deleteFor must be 'me' or 'everyone'")
	}
	return scope, nil
}

// ValidateTimezone resolves an IANA zone name; empty means UTC.
func ValidateTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, errors.New("unknown timezone")
	}
	return loc, nil
}
