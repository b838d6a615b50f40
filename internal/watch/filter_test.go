package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Relevant(t *testing.T) {
	f, err := NewFilter([]string{"go", ".Mod"}, []string{"tmp/**", ".git/**", "vendor/**"})
	require.NoError(t, err)

	testCases := []struct {
		name     string
		rel      string
		expected bool
	}{
		{
			name:     "source file",
			rel:      "cmd/api/main.go",
			expected: true,
		},
		{
			name:     "uppercase extension",
			rel:      "pkg/UTIL.GO",
			expected: true,
		},
		{
			name:     "manifest outside the include list",
			rel:      "go.sum",
			expected: true,
		},
		{
			name:     "manifest in a subdirectory",
			rel:      "sub/go.mod",
			expected: true,
		},
		{
			name:     "unlisted extension",
			rel:      "README.md",
			expected: false,
		},
		{
			name:     "no extension",
			rel:      "Makefile",
			expected: false,
		},
		{
			name:     "excluded build output",
			rel:      "tmp/api.go",
			expected: false,
		},
		{
			name:     "excluded nested path",
			rel:      ".git/objects/ab/cd.go",
			expected: false,
		},
		{
			name:     "exclusion beats the manifest rule",
			rel:      "vendor/golang.org/x/mod/go.mod",
			expected: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, f.Relevant(tc.rel))
		})
	}
}

func TestFilter_EmptyIncludeListAcceptsAnyExtension(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)

	assert.True(t, f.Relevant("notes.txt"))
	assert.False(t, f.Relevant("Makefile"))
}

func TestFilter_SkipDir(t *testing.T) {
	f, err := NewFilter([]string{"go"}, []string{"tmp/**", ".git/**", "docs"})
	require.NoError(t, err)

	assert.True(t, f.SkipDir("tmp"))
	assert.True(t, f.SkipDir("tmp/deep"))
	assert.True(t, f.SkipDir(".git"))
	assert.True(t, f.SkipDir("docs"))
	assert.False(t, f.SkipDir("internal"))
}

func TestNewFilter_RejectsBadPattern(t *testing.T) {
	_, err := NewFilter(nil, []string{"a["})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestNormalizeExt(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{raw: ".go", expected: "go"},
		{raw: "GO", expected: "go"},
		{raw: "..Mod", expected: "mod"},
		{raw: "", expected: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeExt(tc.raw))
		})
	}
}
