package tesseract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineName(t *testing.T) {
	assert.Equal(t, "tesseract", New().Name())
}

func TestApplyOptionsRejectsBadPSM(t *testing.T) {
	err := applyOptions(nil, "--psm three")
	assert.Error(t, err)
}

func TestApplyOptionsIgnoresUnknownTokens(t *testing.T) {
	// Tokens that set nothing never touch the client, so a nil client is
	// fine here.
	assert.NoError(t, applyOptions(nil, ""))
	assert.NoError(t, applyOptions(nil, "--oem 1"))
	assert.NoError(t, applyOptions(nil, "--verbose"))
}
