package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap/zapcore"
)

var (
	// SHA-1 or SHA-256 certificate fingerprint, colon separated.
	thumbprintRegex = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){19}[0-9A-Fa-f]{2}$|^([0-9A-Fa-f]{2}:){31}[0-9A-Fa-f]{2}$`)
	serverRegex     = regexp.MustCompile(`^(https?://)?[^\s/:@]+(:[0-9]{1,5})?(/\S*)?$`)
)

func thumbprintValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	if val == "" {
		return true
	}
	return thumbprintRegex.MatchString(val)
}

func logLevelValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := zapcore.ParseLevel(strings.ToLower(val))
	return err == nil
}

// serverValidator accepts a host name, host:port or an http(s) URL. User info is
// rejected so that credentials never travel inside the server flag.
func serverValidator(fl validator.FieldLevel) bool {
	val, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return serverRegex.MatchString(val)
}
