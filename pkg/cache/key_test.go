package cache

import (
	"net/url"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "categories without params",
			key: CacheKey{
				Endpoint: "https://static.104.com.tw/category-tool/json/JobCat.json",
			},
			want: "jobsite:static.104.com.tw/category-tool/json/JobCat.json",
		},
		{
			name: "job card with job code",
			key: CacheKey{
				Endpoint:    "https://be.guide.104.com.tw/wow/jobCard/job",
				QueryParams: url.Values{"jobCode": []string{"2007001004"}},
			},
			want: "jobsite:be.guide.104.com.tw/wow/jobCard/job:jobCode=2007001004",
		},
		{
			name: "search with multiple query params (sorted)",
			key: CacheKey{
				Endpoint: "https://www.104.com.tw/jobs/search/list",
				QueryParams: url.Values{
					"ro":      []string{"0"},
					"page":    []string{"3"},
					"keyword": []string{"Python"},
				},
			},
			want: "jobsite:www.104.com.tw/jobs/search/list:keyword=Python:page=3:ro=0",
		},
		{
			name: "path without scheme and trailing slash",
			key: CacheKey{
				Endpoint: "/api/job/seniority/2007001004/",
			},
			want: "jobsite:api/job/seniority/2007001004",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestCacheKey_Determinism ensures same input always produces same key
func TestCacheKey_Determinism(t *testing.T) {
	key := CacheKey{
		Endpoint: "https://be.guide.104.com.tw/api/job/seniority/2007001004",
		QueryParams: url.Values{
			"type": []string{"1"},
			"a":    []string{"x"},
			"z":    []string{"y"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Errorf("iteration %d: %v, want %v (not deterministic)", i, got, first)
		}
	}
}
