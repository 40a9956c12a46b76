package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedLoggerWritesJSONInProduction(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter("info", "production", &buf)
	defer Init("info", "development")

	log := GetLogger("simulation").WithField("strategy", "batched")
	log.Infof("evaluated %d scenarios", 50)
	log.Debug("hidden at info level")
	require.NoError(t, log.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "simulation", entry["logger"])
	assert.Equal(t, "batched", entry["strategy"])
	assert.Equal(t, "evaluated 50 scenarios", entry["msg"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("debug").String())
	assert.Equal(t, "info", parseLevel("bogus").String())
	assert.Equal(t, "error", parseLevel("error").String())
}

func TestNopDiscards(t *testing.T) {
	Nop().Info("nothing")
}
