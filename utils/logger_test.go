package utils

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorLoggerEmitsPrintf(t *testing.T) {
	InitLogger()

	// Logrus Printf logs at info level; the error logger must not be
	// configured so strictly that its own output is suppressed.
	var buf bytes.Buffer
	ErrorLogger.SetOutput(&buf)

	ErrorLogger.Printf("write failed for order %d", 7)

	assert.Contains(t, buf.String(), "write failed for order 7")
}

func TestInfoLoggerEmitsPrintf(t *testing.T) {
	InitLogger()

	var buf bytes.Buffer
	InfoLogger.SetOutput(&buf)

	InfoLogger.Printf("payment %d settled", 12)

	assert.Contains(t, buf.String(), "payment 12 settled")
}
