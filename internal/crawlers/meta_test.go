package crawlers

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const landingPage = `
<html>
<head>
  <title>Novelpia - The Regressor's Tale</title>
  <meta property="og:image" content="/covers/1213.jpg"/>
</head>
<body>
  <h1>The Regressor's Tale</h1>
  <div class="info">
    <span>Author</span><span>Kim Writer</span>
  </div>
  <div class="tags">
    <a href="#">#Fantasy</a>
    <a href="#">#Regression</a>
    <a href="#">#Fantasy</a>
  </div>
  <span class="badge">Ongoing</span>
  <div class="description">A tale of a man who lived the same decade twice,
  carrying what he learned the first time through every choice of the second.</div>
  <p>short text</p>
</body>
</html>`

func TestExtractMeta(t *testing.T) {
	meta := ExtractMeta(landingPage, "Novelpia - The Regressor's Tale", "https://global.novelpia.com/novel/1213")

	require.Equal(t, "The Regressor's Tale", meta.Title)
	require.Equal(t, "Kim Writer", meta.Author)
	require.Equal(t, []string{"Fantasy", "Regression"}, meta.Tags, "tags deduplicated, hash stripped")
	require.Equal(t, "Ongoing", meta.Status)
	require.Contains(t, meta.Description, "lived the same decade twice")
}

func TestExtractMeta_EmptyPageStillUsable(t *testing.T) {
	meta := ExtractMeta("<html><body></body></html>", "", "https://global.novelpia.com/novel/9")
	require.Equal(t, "Untitled", meta.Title)
	require.Empty(t, meta.Tags)
}

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"COMP", "Completed"},
		{"Completed", "Completed"},
		{"complete", "Completed"},
		{"UP", "Ongoing"},
		{"Ongoing", "Ongoing"},
		{"hiatus", "Hiatus"},
		{"NEW", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, normalizeStatus(tc.in), "input %q", tc.in)
	}
}

func TestExtractMeta_StatBadge(t *testing.T) {
	page := `<html><body><h1>Work</h1><span class="nv-stat-badge">COMP</span></body></html>`
	meta := ExtractMeta(page, "", "https://global.novelpia.com/novel/7")
	require.Equal(t, "Completed", meta.Status)
}

func TestCleanSiteTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Novelpia - My Story", "My Story"},
		{"My Story | Novelpia", "My Story"},
		{"  Plain  ", "Plain"},
		{"", "Untitled"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, cleanSiteTitle(tc.in), "input %q", tc.in)
	}
}

func TestExtractCoverURL(t *testing.T) {
	got := ExtractCoverURL(landingPage, "https://global.novelpia.com")
	require.Equal(t, "https://global.novelpia.com/covers/1213.jpg", got)

	require.Empty(t, ExtractCoverURL("<html></html>", "https://global.novelpia.com"))
}
