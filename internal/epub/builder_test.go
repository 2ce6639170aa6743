package epub

import (
	"archive/zip"
	"io"
	"testing"

	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/stretchr/testify/require"
)

func sampleBook() Book {
	return Book{
		Meta: models.NovelMeta{
			SourceReference: "https://global.novelpia.com/novel/1213",
			Title:           "The Regressor's Tale",
			Author:          "Kim Writer",
			Tags:            []string{"Fantasy"},
			Description:     "A tale told twice.",
			Status:          "Ongoing",
		},
		Chapters: []models.ChapterContent{
			{Index: 1, Title: "EP.1 Beginning", HTML: "<p>first</p>"},
			{Index: 2, Title: "EP.2 <Again>", HTML: "<p>second</p>"},
		},
	}
}

func TestBuild_PackageLayout(t *testing.T) {
	out, err := NewBuilder(nil).Build(sampleBook(), t.TempDir())
	require.NoError(t, err)
	require.Contains(t, out, "the-regressor-s-tale.epub")

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	// mimetype must be first and stored uncompressed
	require.Equal(t, "mimetype", r.File[0].Name)
	require.Equal(t, zip.Store, r.File[0].Method)
	require.Equal(t, mimetypePayload, readEntry(t, r.File[0]))

	names := make(map[string]bool)
	for _, f := range r.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		"META-INF/container.xml",
		"OEBPS/content.opf",
		"OEBPS/nav.xhtml",
		"OEBPS/toc.ncx",
		"OEBPS/about.xhtml",
		"OEBPS/style/main.css",
		"OEBPS/chap_0001.xhtml",
		"OEBPS/chap_0002.xhtml",
	} {
		require.True(t, names[want], "missing entry %s", want)
	}
}

func TestBuild_LanguageInPackageDocument(t *testing.T) {
	book := sampleBook()
	book.Language = "ko"
	out, err := NewBuilder(nil).Build(book, t.TempDir())
	require.NoError(t, err)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.File {
		if f.Name == "OEBPS/content.opf" {
			opf := readEntry(t, f)
			require.Contains(t, opf, "<dc:language>ko</dc:language>")
			return
		}
	}
	t.Fatal("content.opf missing")
}

func TestBuild_LanguageDefaultsToEnglish(t *testing.T) {
	out, err := NewBuilder(nil).Build(sampleBook(), t.TempDir())
	require.NoError(t, err)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.File {
		if f.Name == "OEBPS/content.opf" {
			require.Contains(t, readEntry(t, f), "<dc:language>en</dc:language>")
			return
		}
	}
	t.Fatal("content.opf missing")
}

func TestBuild_EscapesMarkupInTitles(t *testing.T) {
	out, err := NewBuilder(nil).Build(sampleBook(), t.TempDir())
	require.NoError(t, err)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	for _, f := range r.File {
		switch f.Name {
		case "OEBPS/nav.xhtml":
			require.Contains(t, readEntry(t, f), "EP.2 &lt;Again&gt;")
		case "OEBPS/chap_0002.xhtml":
			body := readEntry(t, f)
			require.Contains(t, body, "&lt;Again&gt;")
			require.Contains(t, body, "<p>second</p>")
		}
	}
}

func TestBuild_CoverInManifest(t *testing.T) {
	book := sampleBook()
	book.Cover = []byte{0xff, 0xd8, 0xff}
	book.CoverExt = ".jpg"

	out, err := NewBuilder(nil).Build(book, t.TempDir())
	require.NoError(t, err)

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	var opf string
	found := false
	for _, f := range r.File {
		if f.Name == "OEBPS/content.opf" {
			opf = readEntry(t, f)
		}
		if f.Name == "OEBPS/cover.jpg" {
			found = true
		}
	}
	require.True(t, found, "cover bytes must land in the package")
	require.Contains(t, opf, `properties="cover-image"`)
}

func readEntry(t *testing.T, f *zip.File) string {
	t.Helper()
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}
