package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached GitHub response.
type CacheKey struct {
	// Path is the request path (e.g., "/repos/octocat/hello-world/issues")
	Path string

	// Query are the query parameters, including page and per_page
	Query url.Values

	// Accept is the media type requested; different media types return
	// different bodies for the same path
	Accept string

	// Principal identifies the credential the response was fetched with
	// (see PrincipalFor). Empty for anonymous requests.
	Principal string
}

// PrincipalFor derives a non-reversible principal from an access token so
// responses fetched with different credentials never share a key.
func PrincipalFor(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}

// String generates a deterministic cache key string.
// Format: gh:path:query1=val1:query2=val2:accept=...:auth=...
//
// Example:
//
//	gh:repos/octocat/hello-world/issues:page=2:per_page=100
func (k CacheKey) String() string {
	parts := []string{"gh"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Query params sorted for determinism; repeated values keep their order
	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(k.Query[key], ",")))
		}
	}

	if k.Accept != "" {
		parts = append(parts, "accept="+k.Accept)
	}

	if k.Principal != "" {
		parts = append(parts, "auth="+k.Principal)
	}

	return strings.Join(parts, ":")
}
