package objstore

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"firmware v2 (final).zip": "firmware_v2_final_.zip",
		"ota//build\\1.bin":       "ota_build_1.bin",
		"___release___":           "release",
		"a  b  c.tar.gz":          "a_b_c.tar.gz",
		"clean-name_1.0.img":      "clean-name_1.0.img",
		"日本語.zip":                 ".zip",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestSanitizeFilenameProperties(t *testing.T) {
	inputs := []string{
		"weird !@#$%^&*() name.zip",
		"tab\tand\nnewline.bin",
		"____", "a_____b", "  spaces  ",
		"mixed/UP\\per.TAR.GZ",
	}
	bad := regexp.MustCompile(`[^a-zA-Z0-9._-]`)
	for _, in := range inputs {
		out := SanitizeFilename(in)
		assert.False(t, bad.MatchString(out), "%q -> %q contains invalid chars", in, out)
		assert.NotContains(t, out, "__", "%q -> %q has a run of separators", in, out)
		assert.False(t, strings.HasPrefix(out, "_"), "%q -> %q has leading separator", in, out)
		assert.False(t, strings.HasSuffix(out, "_"), "%q -> %q has trailing separator", in, out)
	}
}

func TestGenerateKeyParseKeyRoundTrip(t *testing.T) {
	pairs := []struct{ slug, filename string }{
		{"acme", "report.ZIP"},
		{"blaupunkt", "ota update 2024.bin"},
		{"space-1", "v1.2.3.tar.gz"},
	}
	for _, p := range pairs {
		key := GenerateKey(p.slug, p.filename)
		parts, ok := ParseKey(key)
		require.True(t, ok, "generated key %q must parse", key)
		assert.Equal(t, p.slug, parts.SpaceSlug)
		assert.Equal(t, SanitizeFilename(p.filename), parts.Filename)
		assert.InDelta(t, time.Now().UnixMilli(), parts.Timestamp, 5000)
	}
}

func TestGenerateKeyShape(t *testing.T) {
	key := GenerateKey("acme", "report.ZIP")
	assert.Regexp(t, `^uploads/acme/\d+-report\.ZIP$`, key)
}

func TestParseKeyRejectsOtherShapes(t *testing.T) {
	for _, key := range []string{
		"",
		"uploads/acme",
		"uploads/acme/",
		"uploads/acme/file.zip",       // missing timestamp
		"downloads/acme/123-file.zip", // wrong root
		"uploads//123-file.zip",       // empty slug
		"uploads/acme/abc-file.zip",   // non-numeric timestamp
	} {
		_, ok := ParseKey(key)
		assert.False(t, ok, "key %q must not parse", key)
	}
}

func TestBelongsToSpace(t *testing.T) {
	assert.True(t, BelongsToSpace("uploads/acme/123-f.zip", "acme"))
	// A lexically impersonating prefix must not match: the check includes
	// the trailing separator.
	assert.False(t, BelongsToSpace("uploads/acme-evil/123-f.zip", "acme"))
	assert.False(t, BelongsToSpace("uploads/acme/123-f.zip", "acme-evil"))
	assert.False(t, BelongsToSpace("uploads/other/123-f.zip", "acme"))
	assert.False(t, BelongsToSpace("tmp/uploads/acme/123-f.zip", "acme"))
}

func TestValidMD5(t *testing.T) {
	assert.True(t, ValidMD5("d41d8cd98f00b204e9800998ecf8427e"))
	assert.False(t, ValidMD5("D41D8CD98F00B204E9800998ECF8427E"), "uppercase rejected")
	assert.False(t, ValidMD5("d41d8cd98f00b204e9800998ecf8427"), "31 chars")
	assert.False(t, ValidMD5("d41d8cd98f00b204e9800998ecf8427ef"), "33 chars")
	assert.False(t, ValidMD5(""))
}
