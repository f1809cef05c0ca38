// File: cmd/fakesignup/main_test.go
package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetMocks() {
	osWriteFile = os.WriteFile
	osExit = os.Exit
}

func TestHandlePanic_WritesLog(t *testing.T) {
	defer resetMocks()

	var (
		written  string
		exitCode = -1
	)
	osWriteFile = func(name string, data []byte, perm os.FileMode) error {
		assert.Equal(t, panicLogFile, name)
		written = string(data)
		return nil
	}
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("boom")
	}()

	assert.Equal(t, 1, exitCode)
	assert.True(t, strings.HasPrefix(written, "panic: boom"))
	assert.Contains(t, written, "goroutine", "the stack trace is included")
}

func TestHandlePanic_LogWriteFails(t *testing.T) {
	defer resetMocks()

	exitCode := -1
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only fs") }
	osExit = func(code int) { exitCode = code }

	func() {
		defer handlePanic()
		panic("boom")
	}()
	assert.Equal(t, 1, exitCode)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	defer resetMocks()

	called := false
	osExit = func(int) { called = true }
	func() {
		defer handlePanic()
	}()
	assert.False(t, called)
}

func TestRunInteractive(t *testing.T) {
	in := strings.NewReader("\n--version\nno-such-command\nexit\nidentity\n")
	var out bytes.Buffer

	require.NoError(t, runInteractive(context.Background(), in, &out))

	got := out.String()
	assert.Contains(t, got, "fakesignup version")
	assert.Contains(t, got, `Error: unknown command "no-such-command"`)
	assert.True(t, strings.HasSuffix(got, "Bye.\n"))
	assert.Equal(t, 4, strings.Count(got, "fakesignup > "), "input after exit is not read")
}

func TestRunInteractive_EOF(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, runInteractive(context.Background(), strings.NewReader("--version"), &out))
	assert.Contains(t, out.String(), "fakesignup version")
}
