package crawlers

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

var siteTitlePrefix = regexp.MustCompile(`(?i)^\s*Novelpia\s*[-–|]\s*`)
var siteTitleSuffix = regexp.MustCompile(`(?i)\s*[-–|]\s*Novelpia\s*$`)

// coverSelectors are tried in order after the standard meta tags.
var coverSelectors = []string{
	"meta[property='og:image']",
	"meta[name='twitter:image']",
	".cover img",
	".novel-cover img",
	"img.cover",
}

// ExtractMeta mines the work's landing page markup for its metadata. Every
// field is best-effort; a page with nothing recognizable still yields a
// usable NovelMeta with a fallback title.
func ExtractMeta(html, pageTitle, sourceRef string) models.NovelMeta {
	meta := models.NovelMeta{SourceReference: sourceRef}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		utils.Warnf("parse landing page: %v", err)
		meta.Title = cleanSiteTitle(pageTitle)
		return meta
	}

	meta.Title = cleanSiteTitle(firstNonEmpty(
		doc.Find("h1").First().Text(),
		attrContent(doc, "meta[property='og:title']"),
		pageTitle,
		doc.Find("title").First().Text(),
	))

	meta.Author = extractLabeledValue(doc, "author")
	meta.Tags = extractHashTags(doc)
	meta.Status = extractStatus(doc)
	meta.Description = extractDescription(doc)

	utils.Infof("metadata: title=%q author=%q status=%q tags=%d",
		meta.Title, meta.Author, meta.Status, len(meta.Tags))
	return meta
}

// ExtractCoverURL finds the cover image reference from standard meta-tag
// locations, then from common cover selectors. Empty when absent.
func ExtractCoverURL(html, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	for _, sel := range coverSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		ref, _ := node.Attr("content")
		if ref == "" {
			ref, _ = node.Attr("src")
		}
		if ref = strings.TrimSpace(ref); ref != "" {
			return utils.AbsoluteURL(baseURL, ref)
		}
	}
	return ""
}

func cleanSiteTitle(title string) string {
	title = strings.TrimSpace(title)
	title = siteTitlePrefix.ReplaceAllString(title, "")
	title = siteTitleSuffix.ReplaceAllString(title, "")
	if title = strings.TrimSpace(title); title == "" {
		return "Untitled"
	}
	return title
}

// extractLabeledValue finds a label element whose text equals label
// (case-insensitive) and returns its sibling's text.
func extractLabeledValue(doc *goquery.Document, label string) string {
	var value string
	doc.Find("span, dt, label, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(s.Text()), label) {
			return true
		}
		if sib := strings.TrimSpace(s.Next().Text()); sib != "" {
			value = sib
			return false
		}
		return true
	})
	return value
}

// extractHashTags collects hash-prefixed tag tokens, deduplicated, with the
// leading '#' stripped.
func extractHashTags(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var tags []string
	doc.Find("a, span").Each(func(_ int, s *goquery.Selection) {
		txt := strings.TrimSpace(s.Text())
		if !strings.HasPrefix(txt, "#") || len(txt) < 2 || strings.ContainsAny(txt, " \n\t") {
			return
		}
		tag := strings.TrimPrefix(txt, "#")
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	})
	return tags
}

func extractStatus(doc *goquery.Document) string {
	var status string
	doc.Find(".nv-stat-badge, .badge, .status, .novel-status, .label").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if norm := normalizeStatus(s.Text()); norm != "" {
			status = norm
			return false
		}
		return true
	})
	return status
}

// normalizeStatus folds the site's badge variants ("COMP", "UP", ...) into
// canonical values.
func normalizeStatus(raw string) string {
	switch t := strings.ToLower(strings.TrimSpace(raw)); {
	case strings.HasPrefix(t, "comp"):
		return "Completed"
	case t == "ongoing" || t == "up":
		return "Ongoing"
	case t == "hiatus":
		return "Hiatus"
	case t == "dropped":
		return "Dropped"
	default:
		return ""
	}
}

// extractDescription picks the longest text block among likely description
// containers, a crude but markup-tolerant heuristic.
func extractDescription(doc *goquery.Document) string {
	best := ""
	doc.Find("article, .description, .prose, .detail, .content, p").Each(func(i int, s *goquery.Selection) {
		if i >= 60 {
			return
		}
		txt := strings.Join(strings.Fields(s.Text()), " ")
		if len(txt) > len(best) {
			best = txt
		}
	})
	return best
}

func attrContent(doc *goquery.Document, sel string) string {
	v, _ := doc.Find(sel).First().Attr("content")
	return strings.TrimSpace(v)
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}
