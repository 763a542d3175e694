package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/porticus-lab/onepage-pdf/internal/config"
)

// writePDF writes a minimal PDF with one page per height (in points).
func writePDF(t *testing.T, width float64, heights ...float64) string {
	t.Helper()

	var buf bytes.Buffer
	var offsets []int
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := make([]string, len(heights))
	for i := range heights {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(heights)))
	for _, h := range heights {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %g %g] >>", width, h))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestRunInfo(t *testing.T) {
	path := writePDF(t, 792, 36000)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"info", path}, &out))

	got := out.String()
	assert.Contains(t, got, "Version: PDF-1.4")
	assert.Contains(t, got, "Pages:   1")
	assert.Contains(t, got, "Page 1: 792 x 36000 pt (11.00 x 500.00 in)")
}

func TestRunInfo_MultiplePages(t *testing.T) {
	path := writePDF(t, 792, 1224, 1224, 600)

	var out bytes.Buffer
	require.NoError(t, runInfo([]string{path}, &out))
	assert.Contains(t, out.String(), "Pages:   3")
	assert.Contains(t, out.String(), "Page 3: 792 x 600 pt")
}

func TestRunInfo_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runInfo(nil, &out))
	assert.Error(t, runInfo([]string{filepath.Join(t.TempDir(), "missing.pdf")}, &out))

	notPDF := filepath.Join(t.TempDir(), "x.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("hello"), 0o644))
	assert.Error(t, runInfo([]string{notPDF}, &out))
}

func TestRun_Usage(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"help"}, &out))
	assert.Contains(t, out.String(), "quizpdf export")

	assert.ErrorIs(t, run(context.Background(), nil, &out), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"frobnicate"}, &out), errUsage)
}

func TestRunExport_RequiresQuiz(t *testing.T) {
	err := run(context.Background(), []string{"export", "--log-level", "error"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrMissingQuiz)
}

// withoutTerminal makes the export command behave as if stdin were piped.
func withoutTerminal(t *testing.T) {
	t.Helper()
	prev := stdinIsTerminal
	stdinIsTerminal = func() bool { return false }
	t.Cleanup(func() { stdinIsTerminal = prev })
}

func TestRunExport_RequiresCredentials(t *testing.T) {
	withoutTerminal(t)
	t.Setenv("QUIZPDF_PASSWORD", "")
	err := run(context.Background(), []string{
		"export", "--course", "1", "--quiz", "2", "--user", "3", "--log-level", "error",
	}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrMissingCredentials)
}

func TestRunExport_BadFlag(t *testing.T) {
	err := run(context.Background(), []string{"export", "--no-such-flag"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_HelpFlag(t *testing.T) {
	for _, cmd := range []string{"export", "file"} {
		for _, flag := range []string{"--help", "-h"} {
			err := run(context.Background(), []string{cmd, flag}, &bytes.Buffer{})
			assert.NoError(t, err, "%s %s", cmd, flag)
		}
	}
}

func TestPromptCredentials(t *testing.T) {
	cfg := &config.Config{}
	var out bytes.Buffer
	err := promptCredentials(cfg, strings.NewReader("e0123456\n"), &out, func() ([]byte, error) {
		return []byte("hunter2"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "e0123456", cfg.Username)
	assert.Equal(t, "hunter2", cfg.Password)
	assert.Contains(t, out.String(), "Username: ")
	assert.Contains(t, out.String(), "Password: ")
}

func TestPromptCredentials_KeepsConfigured(t *testing.T) {
	cfg := &config.Config{Username: "alice"}
	var out bytes.Buffer
	err := promptCredentials(cfg, strings.NewReader("ignored\n"), &out, func() ([]byte, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.NotContains(t, out.String(), "Username: ")

	cfg = &config.Config{Username: "alice", Password: "pw"}
	err = promptCredentials(cfg, strings.NewReader(""), &out, func() ([]byte, error) {
		t.Fatal("password read although one was configured")
		return nil, nil
	})
	require.NoError(t, err)
}

func TestPromptCredentials_Errors(t *testing.T) {
	err := promptCredentials(&config.Config{}, strings.NewReader(""), &bytes.Buffer{}, nil)
	assert.Error(t, err)

	cfg := &config.Config{Username: "alice"}
	err = promptCredentials(cfg, strings.NewReader(""), &bytes.Buffer{}, func() ([]byte, error) {
		return nil, errors.New("not a terminal")
	})
	assert.ErrorContains(t, err, "reading password")
}

func TestRunFile_RequiresInput(t *testing.T) {
	err := run(context.Background(), []string{"file", "--log-level", "error"}, &bytes.Buffer{})
	assert.Error(t, err)

	err = run(context.Background(), []string{"file", "--log-level", "error", filepath.Join(t.TempDir(), "missing.html")}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Load("", nil)
	require.NoError(t, err)
	cfg.Browser.NoSandbox = true
	cfg.Browser.ChromePath = "/usr/bin/chromium"

	log := zap.NewNop()
	assert.Len(t, browserOptions(cfg, log), 6)
	assert.Len(t, searchOptions(cfg, log), 4)
}
