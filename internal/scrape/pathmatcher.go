package scrape

import (
	"net/url"
	"path"
	"strings"
)

// defaultExcludePatterns drop pages that never describe what a company does.
var defaultExcludePatterns = []string{
	"/blog/*",
	"/news/*",
	"/press/*",
	"/careers/*",
	"/jobs/*",
	"/legal/*",
	"/privacy*",
	"/terms*",
	"/cookie*",
	"/login*",
	"/signin*",
	"/sign-in*",
	"/signup*",
	"/sign-up*",
	"/*.pdf",
	"/*.jpg",
	"/*.png",
	"/*.zip",
}

// PathMatcher filters candidate links by glob-style path patterns. A
// pattern ending in "/*" also matches every deeper path under it.
type PathMatcher struct {
	patterns []string
}

// NewPathMatcher creates a PathMatcher from glob patterns such as "/blog/*".
// Nil or empty patterns select the defaults.
func NewPathMatcher(patterns []string) *PathMatcher {
	if len(patterns) == 0 {
		patterns = defaultExcludePatterns
	}
	return &PathMatcher{patterns: patterns}
}

// Patterns returns the configured patterns.
func (m *PathMatcher) Patterns() []string {
	return m.patterns
}

// IsExcluded reports whether a URL matches any exclude pattern. Unparseable
// URLs are excluded.
func (m *PathMatcher) IsExcluded(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	return m.isPathExcluded(u.Path)
}

// isPathExcluded checks a URL path against all patterns.
func (m *PathMatcher) isPathExcluded(urlPath string) bool {
	urlPath = strings.ToLower(urlPath)
	for _, pattern := range m.patterns {
		pattern = strings.ToLower(pattern)
		if matchSegmented(pattern, urlPath) {
			return true
		}
	}
	return false
}

// Filter returns links with excluded ones removed, keeping order.
func (m *PathMatcher) Filter(links []string) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		if !m.IsExcluded(l) {
			out = append(out, l)
		}
	}
	return out
}

func matchSegmented(pattern, urlPath string) bool {
	if ok, _ := path.Match(pattern, urlPath); ok {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/")
	}
	return false
}
