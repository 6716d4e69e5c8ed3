package featureflags

import (
	"os"
	"strings"
)

// TrustClientSlug makes product updates store the caller-supplied slug
// instead of deriving it from the new title.
const TrustClientSlug = "trust_client_slug"

// Enabled returns true if a flag is enabled via environment variable.
// Flags are read from env as FLAG_<NAME>=true/1/yes (case-insensitive)
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
