package epub

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/require"
)

func TestDecompressBody(t *testing.T) {
	payload := []byte("chapter illustration bytes")

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, err := gw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, err = bw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	cases := []struct {
		encoding string
		body     []byte
	}{
		{"gzip", gz.Bytes()},
		{"br", br.Bytes()},
		{"", payload},
		{"unknown-enc", payload},
	}
	for _, tc := range cases {
		got, err := decompressBody(tc.encoding, tc.body)
		require.NoError(t, err, "encoding %q", tc.encoding)
		require.Equal(t, payload, got, "encoding %q", tc.encoding)
	}
}

func TestAssetFetcher_RetriesAndCaches(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	f := NewAssetFetcher("")
	data, err := f.Fetch(server.URL + "/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "image-bytes", string(data))
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))

	// second fetch is served from the cache
	_, err = f.Fetch(server.URL + "/a.jpg")
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestImageExt(t *testing.T) {
	cases := []struct {
		url string
		ext string
		ok  bool
	}{
		{"https://cdn.novelpia.com/a.PNG", ".png", true},
		{"https://cdn.novelpia.com/a.jpg?v=2", ".jpg", true},
		{"https://cdn.novelpia.com/img/123", ".jpg", true},
		{"https://cdn.novelpia.com/a.svg", ".svg", false},
	}
	for _, tc := range cases {
		ext, ok := ImageExtFor(tc.url)
		require.Equal(t, tc.ok, ok, tc.url)
		if ok {
			require.Equal(t, tc.ext, ext, tc.url)
		}
	}
}
