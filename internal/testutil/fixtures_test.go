package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateFixtures_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	fixtures := GenerateFixtures(t, dir)
	assert.Len(t, fixtures, 3)

	for _, f := range fixtures {
		assert.True(t, FileExists(dir+"/"+f.InputFile))
		assert.Equal(t, f, LoadFixture(t, dir, f.Name))
	}
}
