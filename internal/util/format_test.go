package util

import (
	"bytes"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatETA(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{-time.Second, "--"},
		{0, "0s"},
		{1400 * time.Millisecond, "1s"},
		{75 * time.Second, "1m15s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h03m04s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatETA(tt.in), "FormatETA(%v)", tt.in)
	}
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "1,234,567", FormatCount(1234567))
	assert.Equal(t, "6", FormatCount(6))
}

func TestQuietSuppressesInfo(t *testing.T) {
	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetColors(false)
	defer func() {
		SetLogOutput(os.Stderr)
		SetLogLevel(LevelInfo)
		SetColors(true)
	}()

	SetLogLevel(LevelError)
	assert.True(t, IsQuiet())
	InfoLog("hidden")
	ErrorLog("shown %d", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "[ERROR] shown 1"))
}
