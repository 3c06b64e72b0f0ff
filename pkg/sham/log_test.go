package sham

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenTraceDisabledReturnsNil(t *testing.T) {
	trace, err := OpenTrace("client", false)
	require.NoError(t, err)
	assert.Nil(t, trace)
	// A nil *Trace must be safe to use everywhere a real one is.
	trace.Event("SND SYN SEQ=%d", 1)
	assert.NoError(t, trace.Close())
}

func TestOpenTraceWritesEvents(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	trace, err := OpenTrace("server", true)
	require.NoError(t, err)
	require.NotNil(t, trace)

	trace.Event("SND SYN SEQ=%d", 1000)
	require.NoError(t, trace.Close())

	b, err := os.ReadFile(filepath.Join(dir, "server_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "SND SYN SEQ=1000")
}
