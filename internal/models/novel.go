package models

import "strings"

// Chapter is one discovered content unit of a novel.
// Index reflects discovery order until the finalizer renumbers the list.
type Chapter struct {
	Index     int    `json:"idx"`       // 1-based position in the final list
	Title     string `json:"title"`     // best-effort display title
	Reference string `json:"reference"` // canonical viewer URL or episode locator
}

// ChapterContent carries a chapter's normalized body, ready for packaging.
type ChapterContent struct {
	Index int    `json:"idx"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

// NovelMeta is the per-run metadata record for one work.
type NovelMeta struct {
	SourceReference string   `json:"source_reference"` // novel page URL or API id
	Title           string   `json:"title"`
	Author          string   `json:"author,omitempty"`
	Tags            []string `json:"tags"`
	Description     string   `json:"description,omitempty"`
	Status          string   `json:"status,omitempty"` // Completed | Ongoing | ""
}

// DisplayTitle returns the title or a stable placeholder.
func (m *NovelMeta) DisplayTitle() string {
	if strings.TrimSpace(m.Title) == "" {
		return "Untitled"
	}
	return m.Title
}

// CrawlStats summarizes one run.
type CrawlStats struct {
	Mode        string  `json:"mode"`         // api | browser
	Discovered  int     `json:"discovered"`   // chapters found by the strategy that ran
	Fetched     int     `json:"fetched"`      // chapters with extracted body content
	Skipped     int     `json:"skipped"`      // chapters skipped (no token / gated / empty body)
	Failed      int     `json:"failed"`       // chapters failed after retries
	PagesSeen   int     `json:"pages_seen"`   // listing pages visited (browser mode)
	Refreshes   int     `json:"refreshes"`    // session refreshes performed
	Duration    float64 `json:"duration"`     // seconds
	OutputFile  string  `json:"output_file"`  // packaged artifact path
	CoverStored bool    `json:"cover_stored"` // cover bytes were embedded
}
