package scrape

import (
	"net/http"
	"strings"
)

// BlockType describes the kind of block detected.
type BlockType string

const (
	BlockNone       BlockType = ""
	BlockCloudflare BlockType = "cloudflare"
	BlockCaptcha    BlockType = "captcha"
	BlockJSShell    BlockType = "js_shell"
)

// shortPageChars bounds the visible text of an interstitial page. Longer
// pages that merely mention a captcha are real content.
const shortPageChars = 2000

// smallBodyBytes bounds raw HTML checked for captcha markers; full pages
// often embed a captcha widget in a contact form.
const smallBodyBytes = 16 * 1024

// DetectBlock checks a raw HTTP response for signs of anti-bot protection.
func DetectBlock(resp *http.Response, body []byte) (bool, BlockType) {
	if resp == nil {
		return false, BlockNone
	}

	// Cloudflare: 403/503 with cf-* headers.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusServiceUnavailable {
		if resp.Header.Get("cf-ray") != "" || resp.Header.Get("cf-cache-status") != "" {
			return true, BlockCloudflare
		}
		if resp.Header.Get("server") == "cloudflare" {
			return true, BlockCloudflare
		}
	}

	lower := strings.ToLower(string(body))
	if strings.Contains(lower, "cf-browser-verification") {
		return true, BlockCloudflare
	}
	if len(body) < smallBodyBytes {
		if blocked, bt := detectMarkers(lower); blocked {
			return blocked, bt
		}
	}

	// JS-only shell: very small body with noscript or meta refresh.
	if len(body) < shortPageChars {
		if strings.Contains(lower, "<noscript") && strings.Contains(lower, "javascript") {
			return true, BlockJSShell
		}
		if strings.Contains(lower, `meta http-equiv="refresh"`) {
			return true, BlockJSShell
		}
	}

	return false, BlockNone
}

// DetectBlockText checks rendered visible text for an interstitial page.
// Only short pages are considered.
func DetectBlockText(text string) (bool, BlockType) {
	if len(text) >= shortPageChars {
		return false, BlockNone
	}
	return detectMarkers(strings.ToLower(text))
}

func detectMarkers(lower string) (bool, BlockType) {
	if strings.Contains(lower, "checking your browser") ||
		strings.Contains(lower, "verify you are human") ||
		strings.Contains(lower, "cloudflare") && strings.Contains(lower, "challenge") {
		return true, BlockCloudflare
	}
	if strings.Contains(lower, "captcha") {
		return true, BlockCaptcha
	}
	return false, BlockNone
}
