package binder

import (
	"net/url"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/hunt2035/SoundSync-sub002/pkg/formats"
)

// bookFormatValidator accepts any known document format tag, including
// "unknown", which is a valid catalog value.
func bookFormatValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return value == string(formats.Unknown) || formats.Parse(value) != formats.Unknown
}

// sourceValidator accepts an absolute filesystem path or a file, http or https
// URL.
func sourceValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if filepath.IsAbs(value) {
		return true
	}
	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "file":
		return u.Path != ""
	case "http", "https":
		return u.Host != ""
	default:
		return false
	}
}
