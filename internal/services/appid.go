package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApplicationIDPrefix starts every application id.
const ApplicationIDPrefix = "CP-"

// IDGenerator produces candidate application ids. Uniqueness is enforced by the store.
type IDGenerator func(now time.Time) string

// NewApplicationID returns CP-YYYYMMDD-XXXXXXXX, where X is eight upper-case
// hex characters taken from a random UUID.
func NewApplicationID(now time.Time) string {
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return ApplicationIDPrefix + now.UTC().Format("20060102") + "-" + random
}

// NormalizeApplicationID trims and upper-cases user input.
func NormalizeApplicationID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

var canonicalApplicationID = regexp.MustCompile(`^CP-\d{8}-[0-9A-F]{8}$`)

// IsCanonicalApplicationID reports whether id has exactly the shape NewApplicationID produces.
func IsCanonicalApplicationID(id string) bool {
	return canonicalApplicationID.MatchString(id)
}

// DocumentKeyPrefix is the blob key prefix every upload for draftID lives under.
func DocumentKeyPrefix(draftID string) string {
	return fmt.Sprintf("applications/%s/", draftID)
}

// ValidApplicationIDFormat reports whether id carries the CP- prefix and something after it.
// Lookups accept any such id; new records only take canonical ones.
func ValidApplicationIDFormat(id string) bool {
	return strings.HasPrefix(id, ApplicationIDPrefix) && len(id) > len(ApplicationIDPrefix)
}
