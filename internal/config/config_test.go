package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 10, cfg.NumRounds)
	assert.Equal(t, 15, cfg.RoundSeconds)
	assert.Equal(t, 15*time.Second, cfg.PollTimeout)
	assert.Equal(t, 10*time.Second, cfg.RateWindow)
	assert.Equal(t, 8, cfg.RealtimeRate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NUM_ROUNDS", "3")
	t.Setenv("POLL_TIMEOUT", "2s")
	t.Setenv("BACKGROUND_CRAWL", "true")

	cfg, err := Load("does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.NumRounds)
	assert.Equal(t, 2*time.Second, cfg.PollTimeout)
	assert.True(t, cfg.BackgroundCrawl)
}

func TestLoad_RejectsNonPositiveRate(t *testing.T) {
	t.Setenv("REALTIME_RATE", "0")

	_, err := Load("does-not-exist.env")
	require.Error(t, err)
}
