package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bayue48/pia-scrap/internal/api"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveWorkRef(t *testing.T) {
	t.Run("numeric id", func(t *testing.T) {
		id, workURL, err := resolveWorkRef("123456")
		require.NoError(t, err)
		assert.Equal(t, 123456, id)
		assert.Equal(t, "https://global.novelpia.com/novel/123456", workURL)
	})

	t.Run("novel page URL", func(t *testing.T) {
		id, workURL, err := resolveWorkRef("https://global.novelpia.com/novel/98765?from=search")
		require.NoError(t, err)
		assert.Equal(t, 98765, id)
		assert.Contains(t, workURL, "/novel/98765")
	})

	t.Run("URL without an id still works for the browser path", func(t *testing.T) {
		id, workURL, err := resolveWorkRef("https://global.novelpia.com/some/landing")
		require.NoError(t, err)
		assert.Zero(t, id)
		assert.Equal(t, "https://global.novelpia.com/some/landing", workURL)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, _, err := resolveWorkRef("not-a-ref")
		assert.Error(t, err)
		_, _, err = resolveWorkRef("")
		assert.Error(t, err)
	})
}

func TestSiteOriginOf(t *testing.T) {
	assert.Equal(t, "https://global.novelpia.com", siteOriginOf("https://global.novelpia.com/novel/1"))
	assert.Equal(t, "https://global.novelpia.com", siteOriginOf("garbage"))
}

func TestFinalizedEpisodes_DropsDuplicateRows(t *testing.T) {
	episodes := []api.EpisodeRow{
		{EpisodeNo: "1", EpiTitle: "EP.1 Title"},
		{EpisodeNo: "2", EpiTitle: "EP.2 Title"},
		{EpisodeNo: "1", EpiTitle: "EP.1 Title (again)"},
		{EpisodeNo: "3", EpiTitle: "EP.3 Title"},
	}

	discovered := make([]models.Chapter, 0, len(episodes))
	for i, ep := range episodes {
		discovered = append(discovered, models.Chapter{Index: i + 1, Title: ep.Title(), Reference: episodeRef(ep)})
	}
	final := Finalize(discovered, 0)
	require.Len(t, final, 3)

	fetchList := finalizedEpisodes(final, episodes)
	require.Len(t, fetchList, 3)
	assert.Equal(t, "EP.1 Title", fetchList[0].EpiTitle, "first occurrence wins")
	assert.Equal(t, "EP.2 Title", fetchList[1].EpiTitle)
	assert.Equal(t, "EP.3 Title", fetchList[2].EpiTitle)
}

func TestWriteSidecars(t *testing.T) {
	dir := t.TempDir()
	meta := models.NovelMeta{Title: "A Novel", Author: "Author"}
	chapters := []models.ChapterContent{
		{Index: 1, Title: "EP.1", HTML: "<p>one</p>"},
		{Index: 2, Title: "EP.2", HTML: "<p>two two</p>"},
	}
	stats := &models.CrawlStats{Mode: "api", Discovered: 2, Fetched: 2}

	require.NoError(t, WriteSidecars(dir, meta, chapters, stats))

	raw, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	require.NoError(t, err)
	var doc sidecarMetadata
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "A Novel", doc.Meta.Title)
	assert.Equal(t, 2, doc.Stats.Fetched)

	lines, err := os.ReadFile(filepath.Join(dir, "chapters.jsonl"))
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(string(lines)), "\n")
	require.Len(t, rows, 2)

	var first chapterLine
	require.NoError(t, json.Unmarshal([]byte(rows[0]), &first))
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, "EP.1", first.Title)
	assert.Equal(t, len("<p>one</p>"), first.Length)

	// body markup never lands in the sidecar
	assert.NotContains(t, string(lines), "two two")
}
