package api

import (
	"path/filepath"
	"testing"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, cfg models.CrawlConfig) *Client {
	t.Helper()
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	c, err := NewClient(store, cfg, "reader@example.com", "secret")
	require.NoError(t, err)
	return c
}

func TestClient_RetryBudgetComesFromConfig(t *testing.T) {
	c := newTestClient(t, models.CrawlConfig{MaxRetries: 5, BackoffBase: 2.0})

	opts := c.defaultOpts(true)
	assert.Equal(t, 5, opts.MaxRetries)
	assert.Equal(t, 2.0, opts.BackoffBase)
	assert.True(t, opts.AllowRefresh)

	opts = c.defaultOpts(false)
	assert.False(t, opts.AllowRefresh)
}

func TestClient_RetryBudgetFallsBackWhenUnset(t *testing.T) {
	c := newTestClient(t, models.CrawlConfig{})

	opts := c.defaultOpts(false)
	assert.Equal(t, 3, opts.MaxRetries)
	assert.Equal(t, 1.25, opts.BackoffBase)
}
