package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a plugin version number such as 2025041400. Versions are
// totally ordered integers; there is no semantic-version parsing.
type Version int64

// versionRegex accepts plain digits with an optional decimal fraction as
// found in core version.php files ("2024100700.00"). The fraction is dropped.
var versionRegex = regexp.MustCompile(`^(\d+)(?:\.\d+)?$`)

// ParseVersion parses a version number string.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, invalidVersionError(s, fmt.Errorf("empty version string"))
	}
	matches := versionRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, invalidVersionError(s, nil)
	}
	n, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, invalidVersionError(s, err)
	}
	return Version(n), nil
}

// String returns the decimal representation.
func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool {
	return v == 0
}

// Newer reports whether v is strictly greater than other.
func (v Version) Newer(other Version) bool {
	return v > other
}

// UnmarshalJSON accepts both JSON numbers and numeric strings, since update
// feeds are not consistent about either.
func (v *Version) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*v = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}
	parsed, err := ParseVersion(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
