package model

import (
	"strings"
	"time"
)

// PageErrorPrefix starts every page-error sentinel. Later stages recognize
// failures by this prefix, so the wording below must stay verbatim.
const PageErrorPrefix = "Page Error - "

// Page-error sentinels embedded in output rows in place of content.
const (
	PageErrWebsiteNotAccessible = PageErrorPrefix + "Website not accessible"
	PageErrCouldNotAccessPage   = PageErrorPrefix + "Could not access page"
	PageErrNoLinkFound          = PageErrorPrefix + "No Link Found"
	PageErrNoAdditionalPages    = PageErrorPrefix + "No additional pages found"
	PageErrNoPagesAccessible    = PageErrorPrefix + "Could not access any pages of the website"
	PageErrCombiningFailed      = PageErrorPrefix + "Error in combining descriptions"
	PageErrUnexpected           = PageErrorPrefix + "Unexpected error occurred"
)

// Answers used when a company cannot be classified.
const (
	AnswerUncertain = "Uncertain"
	AnswerYes       = "Yes"
	AnswerNo        = "No"
)

// IsPageError reports whether s is any page-error sentinel.
func IsPageError(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), PageErrorPrefix)
}

// AllPageErrors reports whether every item is a sentinel. An empty slice
// counts as all errors.
func AllPageErrors(pages []string) bool {
	for _, p := range pages {
		if !IsPageError(p) {
			return false
		}
	}
	return true
}

// NormalizePages truncates or pads pages to exactly k entries. Padding uses
// PageErrNoAdditionalPages. The input slice is not modified.
func NormalizePages(pages []string, k int) []string {
	if k < 0 {
		k = 0
	}
	out := make([]string, k)
	n := copy(out, pages)
	for i := n; i < k; i++ {
		out[i] = PageErrNoAdditionalPages
	}
	return out
}

// CachedPage is a previously loaded page kept in the page cache.
type CachedPage struct {
	URL       string    `json:"url"`
	FinalURL  string    `json:"final_url"`
	Text      string    `json:"text"`
	Links     []string  `json:"links"`
	FetchedAt time.Time `json:"fetched_at"`
}
