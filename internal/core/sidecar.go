package core

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bayue48/pia-scrap/internal/models"
)

// sidecarMetadata is the metadata.json document written next to the package.
type sidecarMetadata struct {
	Meta  models.NovelMeta   `json:"meta"`
	Stats *models.CrawlStats `json:"stats"`
}

// chapterLine is one row of chapters.jsonl: shape of the harvest without
// the full body markup.
type chapterLine struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Length int    `json:"length"`
}

// WriteSidecars drops metadata.json and chapters.jsonl alongside the
// packaged output so downstream tooling can inspect a run without
// unzipping it.
func WriteSidecars(dir string, meta models.NovelMeta, chapters []models.ChapterContent, stats *models.CrawlStats) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc, err := json.MarshalIndent(sidecarMetadata{Meta: meta, Stats: stats}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), doc, 0o644); err != nil {
		return fmt.Errorf("metadata.json: %w", err)
	}

	f, err := os.Create(filepath.Join(dir, "chapters.jsonl"))
	if err != nil {
		return fmt.Errorf("chapters.jsonl: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, ch := range chapters {
		if err := enc.Encode(chapterLine{Index: ch.Index, Title: ch.Title, Length: len(ch.HTML)}); err != nil {
			return fmt.Errorf("chapters.jsonl: %w", err)
		}
	}
	return w.Flush()
}
