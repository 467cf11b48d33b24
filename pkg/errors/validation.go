package errors

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ValidateStreamName validates a stream name for safety.
// Stream names end up in layout keys, file names and URLs, so the rules
// reject anything that could be used for path traversal or injection:
//   - No empty names
//   - No control characters
//   - No path separators or traversal sequences
//   - Maximum length of 128 characters
//   - Not all digits: a stream's group node shares the diagram's node id
//     space with apps, whose ids are numeric
func ValidateStreamName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "stream name cannot be empty")
	}

	if len(name) > 128 {
		return New(ErrCodeInvalidInput, "stream name too long (max 128 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "stream name contains invalid control characters")
		}
	}

	for _, pattern := range []string{"..", "/", "\\", "\x00"} {
		if strings.Contains(name, pattern) {
			return New(ErrCodeInvalidInput, "stream name contains invalid characters: %q", pattern)
		}
	}

	if isDigits(name) {
		return New(ErrCodeInvalidInput, "stream name cannot be numeric: %q", name)
	}

	return nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseID parses a positive numeric record identifier such as an app id
// taken from a URL path or command argument.
func ParseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, New(ErrCodeInvalidInput, "invalid %s id: %q", kind, raw)
	}
	return id, nil
}

// hexColorRegex matches #rgb and #rrggbb colors.
var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateColor validates a hex color used for edge styling.
func ValidateColor(color string) error {
	if !hexColorRegex.MatchString(color) {
		return New(ErrCodeInvalidInput, "invalid hex color: %q", color)
	}
	return nil
}
