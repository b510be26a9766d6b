package source

import "strings"

// DefaultExcludedDomains are result hosts that never describe the subject
// themselves.
var DefaultExcludedDomains = []string{
	"google.com", "googleusercontent.com", "webcache.googleusercontent.com",
	"translate.google.com", "bing.com", "duckduckgo.com",
}

// Filter drops search results whose domain is excluded.
type Filter struct {
	exclude []string
}

// NewFilter creates a filter with the default exclusions plus extras.
func NewFilter(excludeDomains []string) *Filter {
	exclude := make([]string, 0, len(DefaultExcludedDomains)+len(excludeDomains))
	for _, d := range append(append([]string{}, DefaultExcludedDomains...), excludeDomains...) {
		d = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), "www.")
		if d != "" {
			exclude = append(exclude, d)
		}
	}
	return &Filter{exclude: exclude}
}

// Allows reports whether rawURL may be kept. Subdomains of an excluded
// domain are excluded too. URLs without a host are rejected.
func (f *Filter) Allows(rawURL string) bool {
	domain := Domain(rawURL)
	if domain == "" {
		return false
	}
	if f == nil {
		return true
	}
	for _, ex := range f.exclude {
		if domain == ex || strings.HasSuffix(domain, "."+ex) {
			return false
		}
	}
	return true
}
