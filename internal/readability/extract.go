// Package readability selects and cleans a chapter's body markup out of a
// full rendered page: comment sections go, the densest content container
// wins, and images are normalized for offline packaging.
package readability

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

// containerSelectors is the cascade tried for the chapter body; the first
// match with enough text wins.
var containerSelectors = []string{
	"[id*='viewer']", ".viewer", ".view-contents", ".read-contents",
	"article", ".article", ".reader", ".chapter", ".prose",
	".ql-editor", ".content", "[data-reader]", "[data-contents]",
}

// minContainerText is the text length a container must carry to be trusted
// as the chapter body rather than chrome.
const minContainerText = 200

// commentSelectors are removed outright before any container selection.
var commentSelectors = []string{
	".comment-all-wrapper", ".comment-header", ".comment-write-box", ".comment-list-wrapper",
	".cmtbox", ".comment-txt", ".comment-action-btn", ".reply-write-input", ".btn-reply-input",
	".user-info", ".user-nic", ".input-date", ".nv-comments", ".comments", ".comment",
	"#comments", "#comment", "[data-comments]", "[data-comment]",
}

var (
	noCommentsPattern = regexp.MustCompile(`(?i)^\s*(there (are )?no comments|no comments)\s*$`)
	timestampPattern  = regexp.MustCompile(`(?i)^(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*(am|pm)\s*$`)
	titleSelectors    = []string{".chapter-title", ".ep-title", ".title", "header h1", "h1", "h2"}
)

// Extracted is one chapter's cleaned body plus its resolved title.
type Extracted struct {
	Title string
	HTML  string
}

// Extract pulls the readable chapter body out of a rendered page.
// listTitle is the title captured from the listing row, preferred when the
// in-page header is junk; novelTitle disqualifies page titles that merely
// repeat the work's name; base is the site origin used to absolutize
// relative image references. Returns ErrContentGated when no readable body
// exists, which the caller treats as "skip this chapter".
func Extract(pageHTML, listTitle, novelTitle, base string) (Extracted, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHTML))
	if err != nil {
		return Extracted{}, fmt.Errorf("parse chapter page: %w", err)
	}
	stripCommentBlocks(doc.Selection)

	node := findContainer(doc)
	if node == nil {
		return paragraphFallback(doc, listTitle, novelTitle)
	}
	stripCommentBlocks(node)
	normalizeImages(node, base)

	headerTitle := ""
	for _, sel := range titleSelectors {
		if h := node.Find(sel).First(); h.Length() > 0 {
			if txt := squashSpace(h.Text()); txt != "" {
				headerTitle = txt
				break
			}
		}
	}

	title := headerTitle
	if !isGoodTitle(title, novelTitle) {
		if listTitle != "" {
			title = listTitle
		} else if title == "" {
			title = "Chapter"
		}
	}

	body, err := node.Html()
	if err != nil {
		return Extracted{}, fmt.Errorf("serialize chapter body: %w", err)
	}
	return Extracted{Title: title, HTML: body}, nil
}

// NormalizeEpisodeHTML cleans raw episode markup delivered by the API:
// lazy-load sources are promoted, inline styles dropped, and relative or
// scheme-relative image URLs made absolute against base.
func NormalizeEpisodeHTML(raw, base string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	normalizeImages(doc.Selection, base)
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		return raw
	}
	return body
}

func findContainer(doc *goquery.Document) *goquery.Selection {
	for _, sel := range containerSelectors {
		cand := doc.Find(sel).First()
		if cand.Length() == 0 {
			continue
		}
		if len(strings.TrimSpace(cand.Text())) > minContainerText {
			return cand
		}
	}
	return nil
}

// paragraphFallback rebuilds a body from bare paragraphs when no container
// qualifies. Pages with nothing but chrome are gated or missing.
func paragraphFallback(doc *goquery.Document, listTitle, novelTitle string) (Extracted, error) {
	var sb strings.Builder
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		txt := squashSpace(s.Text())
		if len(strings.TrimSpace(txt)) > 10 {
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(txt))
			sb.WriteString("</p>")
		}
	})
	if sb.Len() == 0 {
		return Extracted{}, fmt.Errorf("no readable content found: %w", models.ErrContentGated)
	}

	pageTitle := squashSpace(doc.Find("title").First().Text())
	title := listTitle
	if title == "" {
		if isGoodTitle(pageTitle, novelTitle) {
			title = pageTitle
		} else {
			title = "Chapter"
		}
	}
	return Extracted{Title: title, HTML: sb.String()}, nil
}

// stripCommentBlocks removes comment widgets, commentish containers, and
// stray comment-area text rows (empty-state labels, timestamps, sort tabs).
func stripCommentBlocks(root *goquery.Selection) {
	for _, sel := range commentSelectors {
		root.Find(sel).Remove()
	}

	root.Find("div, section, ul, ol, aside, article").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		joined := strings.ToLower(class + " " + id)
		if strings.Contains(joined, "comment") || strings.Contains(joined, "repl") {
			s.Remove()
		}
	})

	root.Find("p, div, li").Each(func(_ int, s *goquery.Selection) {
		txt := squashSpace(s.Text())
		if noCommentsPattern.MatchString(txt) || timestampPattern.MatchString(txt) ||
			txt == "HOT" || txt == "NEWEST" || txt == "ADD" {
			parent := s.Closest("li, article, section")
			if parent.Length() > 0 {
				parent.Remove()
			} else {
				s.Remove()
			}
		}
	})
}

// normalizeImages promotes data-src, drops inline styles, and absolutizes
// image references.
func normalizeImages(root *goquery.Selection, base string) {
	root.Find("img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); !ok || src == "" {
			if lazy, ok := img.Attr("data-src"); ok && lazy != "" {
				img.SetAttr("src", lazy)
			}
		}
		img.RemoveAttr("style")
		if src, ok := img.Attr("src"); ok && src != "" {
			img.SetAttr("src", utils.AbsoluteURL(base, src))
		}
	})
}

func isGoodTitle(t, novelTitle string) bool {
	s := strings.TrimSpace(t)
	if s == "" || len(s) < 4 {
		return false
	}
	if strings.HasPrefix(strings.ToLower(s), "novelpia -") {
		return false
	}
	if novelTitle != "" && s == strings.TrimSpace(novelTitle) {
		return false
	}
	return true
}

func squashSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
