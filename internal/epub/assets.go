package epub

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	retry "github.com/avast/retry-go/v4"
	"github.com/bayue48/pia-scrap/internal/utils"
)

// AssetFetcher downloads cover and inline images for embedding. Fetches are
// bounded-retry and tolerant: a failed asset is skipped, never fatal.
type AssetFetcher struct {
	client *http.Client
	cache  map[string][]byte
}

func NewAssetFetcher(proxy string) *AssetFetcher {
	transport := &http.Transport{}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &AssetFetcher{
		client: &http.Client{Timeout: 30 * time.Second, Transport: transport},
		cache:  map[string][]byte{},
	}
}

// Fetch downloads one asset with up to three attempts. Results are cached by
// URL so repeated references cost one request.
func (f *AssetFetcher) Fetch(assetURL string) ([]byte, error) {
	if data, ok := f.cache[assetURL]; ok {
		return data, nil
	}

	data, err := retry.DoWithData(
		func() ([]byte, error) { return f.fetchOnce(assetURL) },
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	f.cache[assetURL] = data
	return data, nil
}

func (f *AssetFetcher) fetchOnce(assetURL string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("asset %s: HTTP %d", assetURL, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return decompressBody(resp.Header.Get("Content-Encoding"), body)
}

// decompressBody handles gzip, deflate, and brotli encodings. Unknown
// encodings pass the body through with a warning.
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer reader.Close()
		return io.ReadAll(reader)
	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()
		return io.ReadAll(reader)
	case "br":
		return io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
	case "":
		return body, nil
	default:
		utils.Warnf("unknown Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// embeddableImageExts are the image types carried into the package.
var embeddableImageExts = map[string]struct{}{
	".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {},
}

// ImageExtFor extracts a supported image extension from a URL, defaulting to
// .jpg when the path carries none.
func ImageExtFor(assetURL string) (string, bool) {
	parsed, err := url.Parse(assetURL)
	if err != nil {
		return "", false
	}
	ext := strings.ToLower(path.Ext(parsed.Path))
	if ext == "" {
		return ".jpg", true
	}
	_, ok := embeddableImageExts[ext]
	return ext, ok
}

func mediaTypeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
