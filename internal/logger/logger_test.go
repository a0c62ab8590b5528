package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	t.Run("development environment", func(t *testing.T) {
		logger := New("debug", "development")
		assert.NotNil(t, logger)

		logger.Debug("test debug")
		logger.Info("test info")
		logger.Warn("test warn")
		logger.Error("test error")
	})

	t.Run("production environment", func(t *testing.T) {
		logger := New("info", "production")
		assert.NotNil(t, logger)

		logger.Info("test info")
		logger.Warn("test warn")
	})

	t.Run("invalid log level defaults to info", func(t *testing.T) {
		logger := New("invalid", "development")
		assert.NotNil(t, logger)

		logger.Info("test info")
	})
}

func TestNewWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("debug", &buf)

	logger.Info("test message")

	assert.Contains(t, buf.String(), "test message")
	assert.Contains(t, buf.String(), "level")
}

func TestLogger_ProductionFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter("info", &buf)

	logger.Info("test message")

	output := buf.String()

	assert.True(t, strings.Contains(output, "\"level\""), "Output should contain JSON field 'level'")
	assert.True(t, strings.Contains(output, "\"msg\""), "Output should contain JSON field 'msg'")
}

func TestLogger_WithField_ReturnsNewLogger(t *testing.T) {
	logger := New("info", "test")

	loggerWithField := logger.WithField("component", "test_component")

	assert.NotNil(t, loggerWithField)
	assert.NotEqual(t, logger, loggerWithField)

	assert.NotPanics(t, func() {
		loggerWithField.Info("test message")
	})
}

func TestLogger_WithFields_Chaining(t *testing.T) {
	logger := New("info", "test")

	logger1 := logger.WithFields(map[string]interface{}{
		"field1": "value1",
		"field2": 123,
	})
	logger2 := logger1.WithField("field3", true)

	assert.NotNil(t, logger1)
	assert.NotNil(t, logger2)

	logger2.Info("test message with fields")
}

func TestLogrusLogger_Interface(t *testing.T) {
	var _ Logger = (*logrusLogger)(nil)
}
