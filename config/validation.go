package config

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func ValidateAbsPath(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && path.IsAbs(s)
}

func ValidateLocalpath(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s != "" && filepath.IsLocal(s)
}

func ValidateIdentifier(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}

	return identifierPattern.MatchString(s)
}

// ValidatePathPattern accepts empty patterns (defaults apply) and rejects anything that could
// escape the storage root once placeholders are expanded.
func ValidatePathPattern(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}

	if strings.ContainsRune(s, 0) {
		return false
	}

	if strings.HasPrefix(s, "/") || filepath.IsAbs(s) || filepath.VolumeName(s) != "" {
		return false
	}

	// Windows drive letters are rejected on every platform.
	if len(s) >= 2 && s[1] == ':' {
		return false
	}

	for _, segment := range strings.Split(filepath.ToSlash(s), "/") {
		if segment == ".." {
			return false
		}
	}

	return true
}

// ValidateMIMEPattern accepts "type/subtype" and "type/*".
func ValidateMIMEPattern(fl validator.FieldLevel) bool {
	major, minor, ok := strings.Cut(fl.Field().String(), "/")
	return ok && major != "" && minor != "" && !strings.Contains(minor, "/")
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterValidation("abspath", ValidateAbsPath)
	validate.RegisterValidation("localpath", ValidateLocalpath)
	validate.RegisterValidation("identifier", ValidateIdentifier)
	validate.RegisterValidation("pathpattern", ValidatePathPattern)
	validate.RegisterValidation("mimepattern", ValidateMIMEPattern)
	return validate
}
