package pipeline

import (
	"net/url"
	"strings"

	"github.com/sells-group/company-profiler/internal/model"
)

// nullURLs are cell values spreadsheets and dataframes use for "no value".
var nullURLs = map[string]bool{"": true, "nan": true, "none": true, "null": true, "n/a": true}

// NormalizeURL turns a raw input cell into an absolute http(s) URL. A
// missing scheme defaults to https. The second result is false when the
// value is empty, a null marker or has no host.
func NormalizeURL(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if nullURLs[strings.ToLower(s)] {
		return "", false
	}
	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Hostname() == "" || strings.ContainsAny(u.Hostname(), " \t") {
		return "", false
	}
	return u.String(), true
}

// DeriveURLFromEmail builds a homepage from the domain of a contact email:
// "jane@acme.ai" becomes "https://www.acme.ai".
func DeriveURLFromEmail(email string) (string, bool) {
	_, domain, found := strings.Cut(strings.TrimSpace(email), "@")
	domain = strings.Trim(strings.TrimSpace(domain), ".>")
	if !found || domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, "@/ ") {
		return "", false
	}
	return NormalizeURL("https://www." + strings.TrimPrefix(strings.ToLower(domain), "www."))
}

// CompanyURL picks the homepage for a company: the URL column when usable,
// otherwise one derived from the email column.
func CompanyURL(c model.Company) (string, bool) {
	if u, ok := NormalizeURL(c.RawURL); ok {
		return u, true
	}
	if strings.TrimSpace(c.RawURL) == "" || nullURLs[strings.ToLower(strings.TrimSpace(c.RawURL))] {
		return DeriveURLFromEmail(c.Email)
	}
	return "", false
}
