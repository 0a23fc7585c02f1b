package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// maxCategoryLength bounds the category label in runes.
const maxCategoryLength = 32

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("place_field", validatePlaceField); err != nil {
		panic(fmt.Sprintf("failed to register place_field validator: %v", err))
	}
}

// validatePlaceField accepts a Places API field name such as "rating" or
// "displayName.text".
func validatePlaceField(fl validator.FieldLevel) bool {
	return IsPlaceField(fl.Field().String())
}

// NormalizeCategory strips control characters from a category label and
// bounds it in runes. Any label is accepted; unknown ones map to the default
// place type downstream.
func NormalizeCategory(s string) string {
	s = SanitizeText(s)
	if utf8.RuneCountInString(s) > maxCategoryLength {
		s = string([]rune(s)[:maxCategoryLength])
	}
	return s
}

// IsPlaceField reports whether s is a dotted identifier of ASCII letters,
// digits and underscores.
func IsPlaceField(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// FieldErrors flattens validator errors into "field: tag" messages.
func FieldErrors(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, ", ")
}
