package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestNew_Levels(t *testing.T) {
	dev := New(EnvDevelopment)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))

	prod := New(EnvProduction)
	assert.False(t, prod.Core().Enabled(zap.DebugLevel))
	assert.True(t, prod.Core().Enabled(zap.InfoLevel))

	// unknown environments use the production config
	other := New("staging")
	assert.False(t, other.Core().Enabled(zap.DebugLevel))
}
