package logging

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FiltersByLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "warn")
	require.NoError(t, err)

	level.Info(logger).Log("msg", "hidden")
	level.Warn(logger).Log("msg", "memory pressure", "entries", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `level=warn`)
	assert.Contains(t, out, `msg="memory pressure"`)
	assert.Contains(t, out, "entries=3")
	assert.Contains(t, out, "ts=")
}

func TestNew_DefaultIsInfo(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := New(&buf, "")
	require.NoError(t, err)

	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_UnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := New(&bytes.Buffer{}, "verbose")
	assert.Error(t, err)
}
