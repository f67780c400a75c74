package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanPath(t *testing.T) {
	cases := map[string]string{
		"":              "/",
		"/":             "/",
		"about":         "/about",
		"/about/":       "/about",
		`docs\install`:  "/docs/install",
		"/docs//./team": "/docs/team",
	}
	for input, want := range cases {
		got, err := CleanPath(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	for _, bad := range []string{"../etc", "/a/../../b", "a\x00b", "/-flag"} {
		_, err := CleanPath(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}
