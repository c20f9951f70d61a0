package validation

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/veranemoloko/onc-archive/internal/domain"
)

var (
	validate  *validator.Validate
	filterKey = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)
)

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("safe_filename", validateSafeFilename)
	_ = validate.RegisterValidation("safe_path", validateSafePath)
}

// Validator returns the shared validator with the custom rules registered.
func Validator() *validator.Validate {
	return validate
}

// ValidateRequest checks that a download request names a plain file and
// that its output path stays out of parent directories.
func ValidateRequest(req domain.DownloadRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid download request %q: %w", req.Filename, err)
	}
	return nil
}

// ValidateFilters checks that every filter key is a plain identifier and no
// value carries control characters.
func ValidateFilters(filters domain.Filters) error {
	for k, v := range filters {
		if !filterKey.MatchString(k) {
			return fmt.Errorf("invalid filter name %q", k)
		}
		if strings.ContainsFunc(v, isControl) {
			return fmt.Errorf("invalid value for filter %q", k)
		}
	}
	return nil
}

func validateSafeFilename(fl validator.FieldLevel) bool {
	name := fl.Field().String()

	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) {
		return false
	}
	return !strings.ContainsFunc(name, isControl)
}

func validateSafePath(fl validator.FieldLevel) bool {
	p := fl.Field().String()

	if strings.ContainsFunc(p, isControl) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(strings.ReplaceAll(p, `\`, "/")), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
