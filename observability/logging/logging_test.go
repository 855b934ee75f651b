package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWritesStructuredLines(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger, closer := Setup(Options{Service: "flashd", Env: "test", Level: "debug", Output: &buf})
	defer closer.Close()

	logger.Debug("phase", "signature", "0xdeadbeef", "amount", 5)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "DEBUG", line["severity"])
	require.Equal(t, "phase", line["message"])
	require.Equal(t, "flashd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Equal(t, RedactedValue, line["signature"])
	require.EqualValues(t, 5, line["amount"])
	require.Contains(t, line, "timestamp")

	buf.Reset()
	log.Print("bridged")
	require.Contains(t, buf.String(), `"message":"bridged"`)
}

func TestSetupTeesIntoRotatedFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "flashd.log")
	var buf bytes.Buffer
	logger, closer := Setup(Options{Service: "flashd", File: path, MaxSizeMB: 1, Output: &buf})
	logger.Info("committed")
	logger.Debug("dropped at info level")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, buf.String(), string(data))
	require.NotContains(t, string(data), "dropped")
}

func TestSensitiveKeys(t *testing.T) {
	require.True(t, IsSensitive("Passphrase"))
	require.True(t, IsSensitive("request_signature"))
	require.False(t, IsSensitive("caller"))
	require.Equal(t, "", MaskValue(" "))
	require.Equal(t, slog.String("caller", "flash1"), MaskField("caller", "flash1"))
}
