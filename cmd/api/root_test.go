package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodash/backend-go/internal/models"
)

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "cryptodash dev"))
}

func TestNewsCommandUsesMockSource(t *testing.T) {
	t.Setenv("NEWS_SOURCE", "mock")
	t.Setenv("LOG_LEVEL", "error")

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"news"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "News for ")
	assert.Contains(t, out.String(), " 1. ")
}

func TestPrintNewsMarksStale(t *testing.T) {
	var out bytes.Buffer
	printNews(&out, "2025-03-01", true, []models.NewsItem{{Title: "A", Source: "wire", PublishedDate: "2025-03-01"}})
	assert.Contains(t, out.String(), "News for 2025-03-01 (stale)")
	assert.Contains(t, out.String(), " 1. A")
}
