// Package epub packages an ordered chapter list plus work metadata into a
// single EPUB document. The container is written directly with archive/zip;
// inline images are downloaded and embedded so the result reads offline.
package epub

import (
	"archive/zip"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
)

const (
	mimetypePayload = "application/epub+zip"

	containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

	mainCSS = `body { font-family: serif; line-height: 1.5; }
h1, h2 { font-family: sans-serif; }
img { max-width: 100%; height: auto; }
`
)

// manifestItem is one file inside the package, tracked for content.opf.
type manifestItem struct {
	id        string
	href      string
	mediaType string
	props     string
}

// Book is everything the packaging step needs.
type Book struct {
	Meta     models.NovelMeta
	Chapters []models.ChapterContent
	Cover    []byte
	CoverExt string
	Language string // dc:language tag, "en" when empty
}

// Builder assembles EPUB files. A nil fetcher disables image embedding;
// chapter markup then keeps its remote image URLs.
type Builder struct {
	fetcher *AssetFetcher
}

func NewBuilder(fetcher *AssetFetcher) *Builder {
	return &Builder{fetcher: fetcher}
}

// Build writes the packaged document into outDir, named from the slugified
// work title, and returns the written path.
func (b *Builder) Build(book Book, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(outDir, utils.Slugify(book.Meta.DisplayTitle())+".epub")

	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)

	// mimetype must be the first entry and stored uncompressed.
	mimeHeader := &zip.FileHeader{Name: "mimetype", Method: zip.Store}
	w, err := zw.CreateHeader(mimeHeader)
	if err != nil {
		return "", err
	}
	if _, err := w.Write([]byte(mimetypePayload)); err != nil {
		return "", err
	}

	if err := addFile(zw, "META-INF/container.xml", []byte(containerXML)); err != nil {
		return "", err
	}

	manifest := []manifestItem{
		{id: "nav", href: "nav.xhtml", mediaType: "application/xhtml+xml", props: "nav"},
		{id: "ncx", href: "toc.ncx", mediaType: "application/x-dtbncx+xml"},
		{id: "css", href: "style/main.css", mediaType: "text/css"},
		{id: "about", href: "about.xhtml", mediaType: "application/xhtml+xml"},
	}
	spine := []string{"about"}

	if len(book.Cover) > 0 {
		ext := book.CoverExt
		if ext == "" {
			ext = ".jpg"
		}
		coverName := "cover" + ext
		if err := addFile(zw, "OEBPS/"+coverName, book.Cover); err != nil {
			return "", err
		}
		manifest = append(manifest, manifestItem{
			id: "cover-image", href: coverName,
			mediaType: mediaTypeForExt(ext), props: "cover-image",
		})
	}

	imgIndex := 1
	localized := make(map[string]string) // remote URL -> package href
	for i := range book.Chapters {
		ch := &book.Chapters[i]
		body, images := b.localizeImages(ch.HTML, &imgIndex, localized, zw)
		ch.HTML = body
		manifest = append(manifest, images...)

		id := fmt.Sprintf("chap%04d", ch.Index)
		href := fmt.Sprintf("chap_%04d.xhtml", ch.Index)
		if err := addFile(zw, "OEBPS/"+href, chapterXHTML(ch.Title, ch.HTML)); err != nil {
			return "", err
		}
		manifest = append(manifest, manifestItem{id: id, href: href, mediaType: "application/xhtml+xml"})
		spine = append(spine, id)
	}

	if err := addFile(zw, "OEBPS/about.xhtml", aboutXHTML(book)); err != nil {
		return "", err
	}
	if err := addFile(zw, "OEBPS/style/main.css", []byte(mainCSS)); err != nil {
		return "", err
	}
	if err := addFile(zw, "OEBPS/nav.xhtml", navXHTML(book)); err != nil {
		return "", err
	}
	if err := addFile(zw, "OEBPS/toc.ncx", ncxXML(book)); err != nil {
		return "", err
	}
	if err := addFile(zw, "OEBPS/content.opf", packageOPF(book, manifest, spine)); err != nil {
		return "", err
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize package: %w", err)
	}
	utils.Infof("wrote %s (%d chapters)", outPath, len(book.Chapters))
	return outPath, nil
}

// localizeImages downloads every remote image in the chapter body into the
// package and rewrites the references. Failures leave the remote URL in
// place and are only logged.
func (b *Builder) localizeImages(body string, imgIndex *int, localized map[string]string, zw *zip.Writer) (string, []manifestItem) {
	if b.fetcher == nil || !strings.Contains(body, "<img") {
		return body, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return body, nil
	}

	var items []manifestItem
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		src, ok := img.Attr("src")
		if !ok || !strings.HasPrefix(src, "http") {
			return
		}
		if href, done := localized[src]; done {
			img.SetAttr("src", href)
			return
		}
		ext, supported := ImageExtFor(src)
		if !supported {
			return
		}
		data, ferr := b.fetcher.Fetch(src)
		if ferr != nil {
			utils.Warnf("skipping image %s: %v", src, ferr)
			return
		}
		href := fmt.Sprintf("images/img_%05d%s", *imgIndex, ext)
		if aerr := addFile(zw, "OEBPS/"+href, data); aerr != nil {
			utils.Warnf("embedding image %s: %v", src, aerr)
			return
		}
		items = append(items, manifestItem{
			id:        fmt.Sprintf("img%05d", *imgIndex),
			href:      href,
			mediaType: mediaTypeForExt(ext),
		})
		localized[src] = href
		*imgIndex++
		img.SetAttr("src", href)
	})

	out, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(out) == "" {
		return body, items
	}
	return out, items
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func esc(s string) string { return html.EscapeString(s) }

func chapterXHTML(title, body string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>%s</title>
  <link rel="stylesheet" type="text/css" href="style/main.css"/>
</head>
<body>
<h2>%s</h2>
%s
</body>
</html>
`, esc(title), esc(title), body))
}

func aboutXHTML(book Book) []byte {
	meta := book.Meta
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<h1>%s</h1>\n", esc(meta.DisplayTitle())))
	if len(book.Cover) > 0 {
		ext := book.CoverExt
		if ext == "" {
			ext = ".jpg"
		}
		sb.WriteString(fmt.Sprintf("<p><img src=\"cover%s\" alt=\"Cover\"/></p>\n", ext))
	}
	author := meta.Author
	if author == "" {
		author = "Unknown"
	}
	status := meta.Status
	if status == "" {
		status = "Unknown"
	}
	sb.WriteString(fmt.Sprintf("<p><strong>Author:</strong> %s</p>\n", esc(author)))
	sb.WriteString(fmt.Sprintf("<p><strong>Status:</strong> %s</p>\n", esc(status)))
	if len(meta.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("<p><strong>Tags:</strong> %s</p>\n", esc(strings.Join(meta.Tags, ", "))))
	}
	if meta.SourceReference != "" {
		sb.WriteString(fmt.Sprintf("<p><strong>Source:</strong> <a href=\"%s\">%s</a></p>\n",
			esc(meta.SourceReference), esc(meta.SourceReference)))
	}
	if desc := strings.TrimSpace(meta.Description); desc != "" {
		if len(desc) > 2000 {
			desc = desc[:2000]
		}
		sb.WriteString(fmt.Sprintf("<p>%s</p>\n", esc(desc)))
	}

	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
<head>
  <title>About</title>
  <link rel="stylesheet" type="text/css" href="style/main.css"/>
</head>
<body>
%s</body>
</html>
`, sb.String()))
}

func navXHTML(book Book) []byte {
	var sb strings.Builder
	sb.WriteString("    <li><a href=\"about.xhtml\">About</a></li>\n")
	for _, ch := range book.Chapters {
		sb.WriteString(fmt.Sprintf("    <li><a href=\"chap_%04d.xhtml\">%s</a></li>\n",
			ch.Index, esc(ch.Title)))
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head><title>%s</title></head>
<body>
  <nav epub:type="toc" id="toc">
  <h1>Contents</h1>
  <ol>
%s  </ol>
  </nav>
</body>
</html>
`, esc(book.Meta.DisplayTitle()), sb.String()))
}

func ncxXML(book Book) []byte {
	var sb strings.Builder
	order := 1
	sb.WriteString(fmt.Sprintf(`    <navPoint id="about" playOrder="%d">
      <navLabel><text>About</text></navLabel>
      <content src="about.xhtml"/>
    </navPoint>
`, order))
	for _, ch := range book.Chapters {
		order++
		sb.WriteString(fmt.Sprintf(`    <navPoint id="chap%04d" playOrder="%d">
      <navLabel><text>%s</text></navLabel>
      <content src="chap_%04d.xhtml"/>
    </navPoint>
`, ch.Index, order, esc(ch.Title), ch.Index))
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <head>
    <meta name="dtb:uid" content="%s"/>
  </head>
  <docTitle><text>%s</text></docTitle>
  <navMap>
%s  </navMap>
</ncx>
`, esc(bookID(book)), esc(book.Meta.DisplayTitle()), sb.String()))
}

func packageOPF(book Book, manifest []manifestItem, spine []string) []byte {
	meta := book.Meta
	var mf strings.Builder
	for _, item := range manifest {
		if item.props != "" {
			mf.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"%s\" properties=\"%s\"/>\n",
				item.id, item.href, item.mediaType, item.props))
		} else {
			mf.WriteString(fmt.Sprintf("    <item id=\"%s\" href=\"%s\" media-type=\"%s\"/>\n",
				item.id, item.href, item.mediaType))
		}
	}
	var sp strings.Builder
	for _, id := range spine {
		sp.WriteString(fmt.Sprintf("    <itemref idref=\"%s\"/>\n", id))
	}

	lang := book.Language
	if lang == "" {
		lang = "en"
	}

	var extras strings.Builder
	if meta.Author != "" {
		extras.WriteString(fmt.Sprintf("    <dc:creator>%s</dc:creator>\n", esc(meta.Author)))
	}
	if len(meta.Tags) > 0 {
		extras.WriteString(fmt.Sprintf("    <dc:subject>%s</dc:subject>\n", esc(strings.Join(meta.Tags, ", "))))
	}
	if meta.Description != "" {
		extras.WriteString(fmt.Sprintf("    <dc:description>%s</dc:description>\n", esc(meta.Description)))
	}

	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<package xmlns="http://www.idpf.org/2007/opf" xmlns:dc="http://purl.org/dc/elements/1.1/" unique-identifier="book-id" version="3.0">
  <metadata>
    <dc:identifier id="book-id">%s</dc:identifier>
    <dc:title>%s</dc:title>
    <dc:language>%s</dc:language>
%s  </metadata>
  <manifest>
%s  </manifest>
  <spine toc="ncx">
%s  </spine>
</package>
`, esc(bookID(book)), esc(meta.DisplayTitle()), esc(lang), extras.String(), mf.String(), sp.String()))
}

func bookID(book Book) string {
	if id := utils.Slugify(book.Meta.DisplayTitle()); id != "book" {
		return id
	}
	return utils.Slugify(book.Meta.SourceReference)
}
