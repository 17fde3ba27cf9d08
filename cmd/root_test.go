package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/internal/domain"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "market-insights version dev\n", out.String())
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "worker", "process-queue", "stats", "migrate", "token", "version"} {
		assert.True(t, names[want], "missing %s", want)
	}
}

func TestTokenCommand_RequiresSecret(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "")
	cfgFile = t.TempDir() + "/missing.yml"
	t.Cleanup(func() { cfgFile = "" })

	cmd := tokenCommand()
	cmd.SetArgs([]string{})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestRenderStats(t *testing.T) {
	var out bytes.Buffer
	jobs := &domain.JobStats{Pending: 4, Retry: 1, Completed: 10, Failed: 2}
	usage := &domain.UsageSummary{Calls: 13, Failures: 3, InputTokens: 1200, OutputTokens: 300, CostUSD: 0.0123}

	renderStats(&out, jobs, usage, 24*time.Hour)

	s := strings.ToLower(out.String())
	assert.Contains(t, s, "translation jobs")
	assert.Contains(t, s, "pending")
	assert.Contains(t, s, "17")
	assert.Contains(t, s, "llm usage, last 24h0m0s")
	assert.Contains(t, s, "0.012300")
}
