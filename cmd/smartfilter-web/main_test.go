package main

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Version(t *testing.T) {
	cmd := newRootCmd(&options{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "smartfilter-web "+Version)
}

func TestRootCmd_Defaults(t *testing.T) {
	opts := &options{}
	cmd := newRootCmd(opts)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, ":8080", opts.listen)
	assert.Equal(t, "127.0.0.1:9000", opts.backend)
	assert.Equal(t, "uploads", opts.uploadDir)
	assert.Equal(t, "uploads_output", opts.outputDir)
}

func TestRootCmd_RejectsArgs(t *testing.T) {
	cmd := newRootCmd(&options{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"extra"})

	assert.Error(t, cmd.Execute())
}

func testOptions(t *testing.T, listen string) *options {
	dir := t.TempDir()
	return &options{
		listen:    listen,
		backend:   "127.0.0.1:1",
		uploadDir: filepath.Join(dir, "uploads"),
		outputDir: filepath.Join(dir, "uploads_output"),
		timeout:   time.Second,
	}
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	opts := testOptions(t, addr)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, opts) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/photo/missing.png")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNotFound
	}, 5*time.Second, 20*time.Millisecond)

	assert.DirExists(t, opts.uploadDir)
	assert.DirExists(t, opts.outputDir)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_ListenFailure(t *testing.T) {
	taken, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	err = run(context.Background(), testOptions(t, taken.Addr().String()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http server")
}
