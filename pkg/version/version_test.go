package version

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Releases are tagged vMAJOR.MINOR.PATCH; the notifier User-Agent embeds it.
func TestVersion(t *testing.T) {
	assert.Regexp(t, regexp.MustCompile(`^v\d+\.\d+\.\d+$`), Version)
}
