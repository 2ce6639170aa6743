package readability

import (
	"strings"
	"testing"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/stretchr/testify/require"
)

func chapterPage(body string) string {
	return `<html><head><title>Novelpia - Some Novel</title></head><body>` + body + `</body></html>`
}

func longParagraphs() string {
	para := "<p>" + strings.Repeat("He walked through the gate without looking back. ", 8) + "</p>"
	return para + para
}

func TestExtract_ContainerCascade(t *testing.T) {
	page := chapterPage(`
		<nav>site chrome</nav>
		<div id="viewer-area">
			<h1 class="chapter-title">EP.12 The Gate</h1>
			` + longParagraphs() + `
		</div>`)

	got, err := Extract(page, "", "Some Novel", "https://global.novelpia.com")
	require.NoError(t, err)
	require.Equal(t, "EP.12 The Gate", got.Title)
	require.Contains(t, got.HTML, "through the gate")
	require.NotContains(t, got.HTML, "site chrome")
}

func TestExtract_CommentBlocksStripped(t *testing.T) {
	page := chapterPage(`
		<div class="viewer">
			` + longParagraphs() + `
			<div class="comment-list-wrapper"><p>first!!</p></div>
			<div class="reader-replies"><p>reply text</p></div>
			<li><p>There are no comments</p></li>
			<p>HOT</p>
		</div>`)

	got, err := Extract(page, "EP.1", "", "https://global.novelpia.com")
	require.NoError(t, err)
	require.NotContains(t, got.HTML, "first!!")
	require.NotContains(t, got.HTML, "reply text")
	require.NotContains(t, got.HTML, "no comments")
	require.NotContains(t, got.HTML, "HOT")
}

func TestExtract_ParagraphFallback(t *testing.T) {
	page := chapterPage(`
		<p>A sentence long enough to keep.</p>
		<p>short</p>
		<p>Another sentence long enough to keep as well.</p>`)

	got, err := Extract(page, "EP.3 Fallback", "", "")
	require.NoError(t, err)
	require.Equal(t, "EP.3 Fallback", got.Title)
	require.Equal(t, 2, strings.Count(got.HTML, "<p>"))
}

func TestExtract_GatedPage(t *testing.T) {
	_, err := Extract(chapterPage(`<div class="paywall">Subscribe to continue</div>`), "", "", "")
	require.ErrorIs(t, err, models.ErrContentGated)
}

func TestExtract_TitleQuality(t *testing.T) {
	page := chapterPage(`
		<div class="viewer">
			<h1>Some Novel</h1>
			` + longParagraphs() + `
		</div>`)

	// The in-page header just repeats the work's name; the listing title wins.
	got, err := Extract(page, "EP.7 Real Title", "Some Novel", "")
	require.NoError(t, err)
	require.Equal(t, "EP.7 Real Title", got.Title)
}

func TestExtract_RelativeImagesAbsolutized(t *testing.T) {
	page := chapterPage(`
		<div class="viewer">
			` + longParagraphs() + `
			<img src="/imgs/illust.jpg">
		</div>`)

	got, err := Extract(page, "EP.5", "", "https://global.novelpia.com")
	require.NoError(t, err)
	require.Contains(t, got.HTML, `src="https://global.novelpia.com/imgs/illust.jpg"`)
}

func TestNormalizeEpisodeHTML_Images(t *testing.T) {
	raw := `<p>text</p><img data-src="//cdn.novelpia.com/a.jpg" style="width:10px"><img src="/imgs/x.jpg">`
	got := NormalizeEpisodeHTML(raw, "https://global.novelpia.com")
	require.Contains(t, got, `src="https://cdn.novelpia.com/a.jpg"`)
	require.Contains(t, got, `src="https://global.novelpia.com/imgs/x.jpg"`)
	require.NotContains(t, got, "style=")
}
