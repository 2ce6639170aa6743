package api

import (
	"encoding/base64"
	"net/url"
	"strings"

	"github.com/bayue48/pia-scrap/internal/models"
)

// tokenKeys are the field names that may carry the content-access token,
// in lookup order.
var tokenKeys = []string{"_t", "t", "token"}

const (
	contentHostSuffix = "api-global.novelpia.com"
	contentPathSuffix = "/v1/novel/episode/content"
	contentTokenParam = "_t"
)

// LooksLikeJWT reports whether s is shaped like a JSON Web Token: exactly
// three dot-separated segments, each a plausible base64url run. Very short
// segments are rejected so that ordinary dotted words do not qualify.
func LooksLikeJWT(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if len(p) <= 5 {
			return false
		}
		if !decodesAsBase64URL(p) {
			return false
		}
	}
	return true
}

// decodesAsBase64URL is padding-tolerant: trailing '=' is stripped before
// decoding with the raw URL alphabet.
func decodesAsBase64URL(s string) bool {
	trimmed := strings.TrimRight(s, "=")
	if trimmed == "" {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(trimmed)
	return err == nil
}

// ExtractContentToken mines a ticket payload for the chapter's content
// token. Search order, first match wins per tier, JWT-shaped values
// preferred over plain strings at every tier:
//
//  1. the token keys directly on the result object,
//  2. the same keys inside any object nested one level under result,
//  3. any string anywhere in the payload that is an absolute URL on the
//     official content endpoint; its _t query parameter is taken.
//
// When no JWT-shaped candidate exists at any tier, the first non-empty
// plain string seen during the traversal is returned as a fallback. A
// zero-valued ContentToken means nothing usable was found; the caller
// skips the chapter rather than failing the run.
func ExtractContentToken(payload map[string]interface{}) models.ContentToken {
	var fallback string

	result, _ := payload["result"].(map[string]interface{})

	// Tier 1: direct keys on result.
	for _, k := range tokenKeys {
		v, ok := result[k].(string)
		if !ok || v == "" {
			continue
		}
		if LooksLikeJWT(v) {
			return models.ContentToken{Value: v, JWTShaped: true}
		}
		if fallback == "" {
			fallback = v
		}
	}

	// Tier 2: the same keys one level down.
	for _, nested := range result {
		obj, ok := nested.(map[string]interface{})
		if !ok {
			continue
		}
		for _, k := range tokenKeys {
			v, ok := obj[k].(string)
			if !ok || v == "" {
				continue
			}
			if LooksLikeJWT(v) {
				return models.ContentToken{Value: v, JWTShaped: true}
			}
			if fallback == "" {
				fallback = v
			}
		}
	}

	// Tier 3: a full content-endpoint URL hiding anywhere in the payload.
	for _, s := range collectStrings(payload) {
		if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
			continue
		}
		parsed, err := url.Parse(s)
		if err != nil {
			continue
		}
		if !strings.HasSuffix(parsed.Host, contentHostSuffix) ||
			!strings.HasSuffix(parsed.Path, contentPathSuffix) {
			continue
		}
		cand := parsed.Query().Get(contentTokenParam)
		if cand == "" {
			continue
		}
		if LooksLikeJWT(cand) {
			return models.ContentToken{Value: cand, JWTShaped: true, DirectURL: s}
		}
		if fallback == "" {
			fallback = cand
		}
	}

	if fallback != "" {
		return models.ContentToken{Value: fallback}
	}
	return models.ContentToken{}
}

// collectStrings walks a decoded JSON tree depth-first and returns every
// string leaf in encounter order. Map iteration order is unspecified in Go,
// which is acceptable here: tier 3 accepts any matching URL.
func collectStrings(node interface{}) []string {
	var out []string
	var walk func(interface{})
	walk = func(n interface{}) {
		switch v := n.(type) {
		case string:
			out = append(out, v)
		case map[string]interface{}:
			for _, child := range v {
				walk(child)
			}
		case []interface{}:
			for _, child := range v {
				walk(child)
			}
		}
	}
	walk(node)
	return out
}
