// Package middleware provides request body size limiting.
package middleware

import "net/http"

const (
	// DefaultStandardMaxBodyBytes is the default max request body for most endpoints (512KB).
	DefaultStandardMaxBodyBytes = 512 * 1024
	// DefaultCrawlMaxBodyBytes is the default max request body for POST /crawl (5MB),
	// sized generously since root_ids can legitimately list many organizations/folders/projects.
	DefaultCrawlMaxBodyBytes = 5 * 1024 * 1024
)

// MaxBodySize returns middleware that limits request body size: crawlMax for
// POST /crawl, standardMax otherwise. Every request with a non-nil Body is
// wrapped, whatever its method.
func MaxBodySize(standardMax, crawlMax int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			max := standardMax
			if r.Method == http.MethodPost && r.URL.Path == "/crawl" {
				max = crawlMax
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
