package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var repoRoot string

func init() {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return
	}
	dir := filepath.Dir(file)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			repoRoot = dir
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

func projectRoot(t *testing.T) string {
	t.Helper()
	if repoRoot == "" {
		t.Fatal("无法定位项目根目录")
	}
	return repoRoot
}

func configFixture(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(projectRoot(t), "internal", "config", "testdata", name)
}

// relayEnvVars 与 config 包的环境变量绑定保持一致。
var relayEnvVars = []string{
	"PORT", "LOG_LEVEL", "LOG_FILE_PATH", "UPSTREAM_TIMEOUT", "BADGE_CACHE_SIZE",
	"MATCHES_SOURCE", "MATCHES_FILE", "CORS_ALLOW_ORIGINS", "METRICS_ENABLED",
	"TRACING_ENABLED", "CHAT_BASE_URL", "CHAT_MODEL", "OPENROUTER_API_KEY",
	"METADATA_BASE_URL", "IMAGES_BASE_URL", "UPSTREAM_USER_AGENT",
}

// isolateRelayEnv 清空宿主环境中的相关变量，避免影响断言。
func isolateRelayEnv(t *testing.T) {
	t.Helper()
	for _, name := range relayEnvVars {
		t.Setenv(name, "")
	}
}

// useBufferWriters swaps stdOut/stdErr with in-memory buffers for the duration
// of a test, allowing assertions on CLI output without polluting test logs.
func useBufferWriters(t *testing.T) {
	t.Helper()

	outBuf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}

	prevOut := stdOut
	prevErr := stdErr

	stdOut = outBuf
	stdErr = errBuf

	t.Cleanup(func() {
		stdOut = prevOut
		stdErr = prevErr
	})
}

// stdErrBuffer returns the in-use stderr buffer when useBufferWriters is active.
func stdErrBuffer() *bytes.Buffer {
	buf, _ := stdErr.(*bytes.Buffer)
	return buf
}
