package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
// Returns the buffer and a cleanup function to restore original output.
func captureOutput() (*bytes.Buffer, func()) {
	buf := new(bytes.Buffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	output = buf
	useColor = false
	mu.Unlock()

	reconfigure()

	cleanup := func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		mu.Unlock()
		reconfigure()
	}

	return buf, cleanup
}

func TestSetLevel_FiltersLowerLevels(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetLevel("WARN")
	defer SetLevel("INFO")

	Debug("debug message")
	Info("info message")
	Warn("warn message")
	Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	SetLevel("INFO")
	SetLevel("bogus")
	assert.Equal(t, int32(LevelInfo), currentLevel.Load())
}

func TestStructuredFields_TextFormat(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("text")
	Info("upstream attempt", KeyNFType, "AMF", KeyAttempt, 2)

	out := buf.String()
	assert.Contains(t, out, "upstream attempt")
	assert.Contains(t, out, "nf_type=AMF")
	assert.Contains(t, out, "attempt=2")
}

func TestJSONFormat_EmitsValidJSON(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	SetFormat("json")
	defer SetFormat("text")

	Info("discovery complete", KeyInstances, 3)

	line := strings.TrimSpace(buf.String())
	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &record))
	assert.Equal(t, "discovery complete", record["msg"])
	assert.Equal(t, float64(3), record[KeyInstances])
}

func TestCtxLogging_InjectsLogContext(t *testing.T) {
	buf, cleanup := captureOutput()
	defer cleanup()

	lc := NewLogContext("10.1.2.3").WithNFType("SMF").WithInstance("inst-1")
	ctx := WithContext(context.Background(), lc)

	InfoCtx(ctx, "request routed")

	out := buf.String()
	assert.Contains(t, out, "client_ip=10.1.2.3")
	assert.Contains(t, out, "nf_type=SMF")
	assert.Contains(t, out, "instance_id=inst-1")
}

func TestLogContext_CloneIsIndependent(t *testing.T) {
	lc := NewLogContext("10.0.0.1")
	clone := lc.WithNFType("UDM")

	assert.Empty(t, lc.NFType)
	assert.Equal(t, "UDM", clone.NFType)
	assert.Equal(t, lc.ClientIP, clone.ClientIP)
}

func TestFromContext_NilSafe(t *testing.T) {
	assert.Nil(t, FromContext(nil)) //nolint:staticcheck
	assert.Nil(t, FromContext(context.Background()))
}

func TestFormatInstance_ShortensUUIDs(t *testing.T) {
	assert.Equal(t, "a1b2c3d4…", FormatInstance("a1b2c3d4-0000-0000-0000-000000000000"))
	assert.Equal(t, "short", FormatInstance("short"))
}
