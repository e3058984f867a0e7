// Package objstore owns everything about the binary object store: the key
// policy (a persisted contract, keys look like
// uploads/{spaceSlug}/{unixMillis}-{sanitizedFilename}) and the S3-backed
// gateway that presigns, probes and deletes objects.
package objstore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix is the root all upload keys live under.
const KeyPrefix = "uploads/"

var (
	invalidChars  = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	repeatedUnder = regexp.MustCompile(`_{2,}`)
	keyPattern    = regexp.MustCompile(`^uploads/([^/]+)/(\d+)-(.+)$`)
	md5Pattern    = regexp.MustCompile(`^[a-f0-9]{32}$`)
)

// SanitizeFilename maps a filename onto the store-safe charset: characters
// outside [A-Za-z0-9._-] become underscores, runs of underscores collapse,
// leading and trailing underscores are trimmed.
func SanitizeFilename(filename string) string {
	s := invalidChars.ReplaceAllString(filename, "_")
	s = repeatedUnder.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// GenerateKey builds the object key for a new upload. The millisecond
// timestamp makes repeated filenames practically unique but is not a
// collision guarantee; callers treat a key conflict as retryable, never as
// license to overwrite.
func GenerateKey(spaceSlug, filename string) string {
	return fmt.Sprintf("%s%s/%d-%s", KeyPrefix, spaceSlug, time.Now().UnixMilli(), SanitizeFilename(filename))
}

// KeyParts are the components of a well-formed upload key.
type KeyParts struct {
	SpaceSlug string
	Timestamp int64 // unix milliseconds
	Filename  string
}

// ParseKey splits a key into its three segments; ok is false for any other
// shape.
func ParseKey(key string) (KeyParts, bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil {
		return KeyParts{}, false
	}
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return KeyParts{}, false
	}
	return KeyParts{SpaceSlug: m[1], Timestamp: ts, Filename: m[3]}, true
}

// BelongsToSpace is the gate that blocks cross-tenant key injection. The
// trailing slash matters: "uploads/acme-evil/..." must not pass for "acme".
func BelongsToSpace(key, spaceSlug string) bool {
	return strings.HasPrefix(key, KeyPrefix+spaceSlug+"/")
}

// ValidMD5 reports whether s is 32 lowercase hex characters.
func ValidMD5(s string) bool {
	return md5Pattern.MatchString(s)
}
