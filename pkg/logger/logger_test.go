package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestLoggerIsUsableBeforeInitialize(t *testing.T) {
	assert.NotNil(t, Logger())
	assert.NotPanics(t, func() { Logger().Info("ignored") })
}

func TestInitialize(t *testing.T) {
	assert.Error(t, Initialize("not-a-level"))

	assert.NoError(t, Initialize("error"))
	assert.NotNil(t, Logger())
	assert.True(t, Logger().Core().Enabled(zapcore.ErrorLevel))
	assert.False(t, Logger().Core().Enabled(zapcore.InfoLevel))
}
