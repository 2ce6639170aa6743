package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"The Second Coming of Gluttony": "the-second-coming-of-gluttony",
		"  EP.1  <The Beginning>  ":     "ep-1-the-beginning",
		"약탈자들":                          "book",
		"":                              "book",
		"Already-fine-123":              "already-fine-123",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "EP.1_ Again_", SanitizeFilename(`EP.1: Again?`))
	assert.Equal(t, "book", SanitizeFilename("  "))
}

func TestAbsoluteURL(t *testing.T) {
	base := "https://global.novelpia.com"

	assert.Equal(t, "https://cdn.example.com/a.jpg", AbsoluteURL(base, "https://cdn.example.com/a.jpg"))
	assert.Equal(t, "https://img.example.com/c.jpg", AbsoluteURL(base, "//img.example.com/c.jpg"))
	assert.Equal(t, base+"/novel/123", AbsoluteURL(base+"/", "/novel/123"))
	assert.Equal(t, "", AbsoluteURL(base, ""))
}

func TestValidateURL(t *testing.T) {
	assert.NoError(t, ValidateURL("https://global.novelpia.com/novel/1"))
	assert.Error(t, ValidateURL("ftp://example.com/x"))
	assert.Error(t, ValidateURL("not a url"))
	assert.Error(t, ValidateURL("/novel/1"))
}
