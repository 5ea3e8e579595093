package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Namespace prefixes every key written by the cache.
const Namespace = "jobsite"

// CacheKey identifies one cached site response.
type CacheKey struct {
	// Endpoint is the request URL without query (e.g. "https://be.guide.104.com.tw/wow/jobCard/job")
	Endpoint string

	// QueryParams are the query parameters (e.g. {"jobCode": "2007001004"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: jobsite:host/path:query1=val1:query2=val2
//
// Example:
//
//	jobsite:be.guide.104.com.tw/api/job/seniority/2007001004:type=1
func (k CacheKey) String() string {
	parts := []string{Namespace}

	// Add endpoint (drop scheme, normalize slashes)
	endpoint := k.Endpoint
	if i := strings.Index(endpoint, "://"); i >= 0 {
		endpoint = endpoint[i+3:]
	}
	endpoint = strings.Trim(endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	// Add query params (sorted for determinism)
	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}
