package main

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/seqharness/internal/adapters/fs"
	"github.com/bft-labs/seqharness/internal/compiler"
	"github.com/bft-labs/seqharness/internal/domain"
	"github.com/bft-labs/seqharness/internal/loopback"
)

func zeros(n int) string {
	return strings.TrimSuffix(strings.Repeat("0,", n), ",")
}

// selfRefProgram compiles to a stream whose loopback trace equals itself.
var selfRefProgram = strings.Join([]string{
	strings.Join(loopback.Header(), ","),
	"0," + zeros(domain.BufferCount),
	"100,0,0,0,0,0,12,34," + zeros(domain.BufferCount-7),
	"250,0,0,0,0,0,12,0," + zeros(domain.BufferCount-8) + ",1",
}, "\n") + "\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestCompare_Match(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "tick,a,b\n0,0,0\n10,1,2\n30,3,4\n")
	act := writeFile(t, dir, "act.csv", "tick,a,b\n0,0,0\n110,1,2\n130,3,4\n")

	code, out, _ := runCLI(t, "compare", ref, act)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "traces match (numeric)")
	assert.Contains(t, out, "3 rows, 20 ticks")
}

func TestCompare_Mismatch(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "tick,a,b\n0,0,0\n10,1,2\n30,3,4\n")
	act := writeFile(t, dir, "act.csv", "tick,a,b\n0,0,0\n10,1,2\n30,3,5\n")

	code, out, _ := runCLI(t, "compare", ref, act)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "traces differ (numeric): row 2 column 2")

	// the textual strategy finds the same row
	code, out, _ = runCLI(t, "compare", "--mode", "text", ref, act)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "traces differ (text)")
}

func TestCompare_Errors(t *testing.T) {
	dir := t.TempDir()
	ref := writeFile(t, dir, "ref.csv", "tick,a\n0,0\n")

	code, _, errOut := runCLI(t, "compare", "--mode", "fuzzy", ref, ref)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "compare mode")

	code, _, _ = runCLI(t, "compare", ref, filepath.Join(dir, "missing.csv"))
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "compare", ref)
	assert.Equal(t, 2, code)
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	prog := writeFile(t, dir, "prog.csv", selfRefProgram)
	out := filepath.Join(dir, "prog.bin")

	code, _, errOut := runCLI(t, "compile", prog, "-o", out, "--board", "ocra1")
	require.Equal(t, 0, code, errOut)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	words, err := compiler.Words(data)
	require.NoError(t, err)
	// four buffer changes over two rows
	assert.Len(t, words, domain.BufferCount+2*4)

	code, _, _ = runCLI(t, "compile", prog, "--board", "ocra9")
	assert.Equal(t, 2, code)
}

func startLoopback(t *testing.T) (host string, port int) {
	t.Helper()
	srv, err := loopback.New(loopback.Config{
		Addr:          "127.0.0.1:0",
		ReplyTrace:    true,
		StartupOffset: loopback.DefaultStartupOffset,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	h, p, err := net.SplitHostPort(srv.Addr())
	require.NoError(t, err)
	port, err = strconv.Atoi(p)
	require.NoError(t, err)
	return h, port
}

func TestTest_AgainstRunningServer(t *testing.T) {
	host, port := startLoopback(t)

	dir := t.TempDir()
	writeFile(t, dir, "self.csv", selfRefProgram)
	writeFile(t, dir, "other.csv", strings.Replace(selfRefProgram, "12,34", "12,35", 1))
	suitePath := writeFile(t, dir, "suite.yaml", `
name: smoke
cases:
  - name: self
    program: self.csv
  - name: wrong
    program: self.csv
    reference: other.csv
  - name: skipped
    program: self.csv
    skip: true
`)
	reportDir := filepath.Join(dir, "reports")
	require.NoError(t, os.MkdirAll(reportDir, 0o755))
	metricsFile := filepath.Join(dir, "seqharness.prom")

	code, out, errOut := runCLI(t, "test", suitePath,
		"--host", host, "--port", strconv.Itoa(port),
		"--report-dir", reportDir, "--metrics-file", metricsFile)
	require.Equal(t, 1, code, "stdout:\n%s\nstderr:\n%s", out, errOut)
	assert.Contains(t, out, "PASS  self")
	assert.Contains(t, out, "FAIL  wrong")
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "2 cases: 1 passed, 1 failed, 0 errored")

	report, err := fs.NewReportFileRepository(reportDir).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "smoke", report.Suite)
	assert.Equal(t, 2, report.Summary.Total)

	prom, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "seqharness_")

	// the filter keeps only the passing case
	code, out, _ = runCLI(t, "test", suitePath, "--format", "json", "--filter", "self",
		"--host", host, "--port", strconv.Itoa(port), "--report-dir", reportDir)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, `"passed": 1`)
}

func TestTest_NoServerErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	dir := t.TempDir()
	writeFile(t, dir, "self.csv", selfRefProgram)
	suitePath := writeFile(t, dir, "suite.yaml", "name: s\ncases:\n  - name: self\n    program: self.csv\n")

	code, out, _ := runCLI(t, "test", suitePath,
		"--host", "127.0.0.1", "--port", strconv.Itoa(port), "--report-dir", dir)
	assert.Equal(t, 2, code)
	assert.Contains(t, out, "ERROR self")
	assert.Contains(t, out, "Connected")
}

func TestTest_BadInvocation(t *testing.T) {
	dir := t.TempDir()
	code, _, errOut := runCLI(t, "test", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 2, code)
	assert.NotEmpty(t, errOut)

	suitePath := writeFile(t, dir, "suite.yaml", "name: s\ncases:\n  - name: a\n    program: a.csv\n")
	code, _, errOut = runCLI(t, "test", suitePath, "--format", "yaml")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown format")

	code, _, _ = runCLI(t, "test", suitePath, "--port", "0")
	assert.Equal(t, 2, code)
}

func TestLoopback_RejectsBadArgs(t *testing.T) {
	code, _, _ := runCLI(t, "loopback", "csv")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "loopback", "--behavior", "sulk", "csv", filepath.Join(t.TempDir(), "x.csv"))
	assert.Equal(t, 2, code)
}
