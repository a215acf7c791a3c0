package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-brawler/pkg/ibus"
	"github.com/teslashibe/go-brawler/pkg/mixer"
	"github.com/teslashibe/go-brawler/pkg/web"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConfigCommand_PrintsDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "receiver:")
	assert.Contains(t, out, "port: /dev/serial0")
	assert.Contains(t, out, "layout: xdrive")
}

func TestDecodeCommand_CaptureFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := ibus.DefaultConfig()
	capture := append(ibus.Encode(cfg, []uint16{1500, 1500, 1000, 1500, 1000, 1000}), 0x55, 0x20)
	capture = append(capture, ibus.Encode(cfg, []uint16{2000, 1000, 1500, 1500, 2000, 2000})...)
	path := filepath.Join(dir, "match.ibus")
	require.NoError(t, os.WriteFile(path, capture, 0o644))

	out, err := execute(t, "decode", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1500 1500 1000 1500 1000 1000")
	assert.Contains(t, out, "2000 1000 1500 1500 2000 2000")
	assert.Contains(t, out, "frames=2 checksum_failures=0 dropped_bytes=2")
}

func TestCalibrateCommand_RequiresConfirmation(t *testing.T) {
	_, err := execute(t, "calibrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestFormatStatus(t *testing.T) {
	line := formatStatus(watchStatus{
		Tick:       7,
		State:      "KILLED",
		Mode:       "manual",
		KillReason: "link lost",
		Freshness:  "stale",
		Intent:     mixer.Intent{Y: 0.5},
		Motors:     []float64{0, 0},
	})
	assert.Contains(t, line, "KILLED")
	assert.Contains(t, line, "y=+0.50")
	assert.Contains(t, line, "motors=[+0.00 +0.00]")
	assert.Contains(t, line, `kill="link lost"`)
}

func TestServeDashboard_NeverEndsTheRun(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ln.Close() // serving fails straight away

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- serveDashboard(ctx, web.NewServer("", web.Deps{}), ln) }()

	select {
	case err := <-done:
		require.NoError(t, err, "a dashboard failure must not fail the run")
	case <-time.After(5 * time.Second):
		t.Fatal("dashboard did not stop with ctx")
	}
}
