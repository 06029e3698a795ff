package media

import "strings"

// Resolver turns stored references into fully-qualified URLs.  BaseURL is
// the scheme and host ("https://api.example"), MediaURL the path prefix
// under which Root is served ("/media/").
type Resolver struct {
	BaseURL  string
	MediaURL string
}

// Resolve accepts an absolute URL, a root-relative path or a bare storage
// reference and always returns an absolute URL.  Already-absolute input is
// returned untouched, so Resolve(Resolve(x)) == Resolve(x).  An empty
// reference resolves to "".
func (r Resolver) Resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if isAbsolute(ref) {
		return ref
	}
	base := strings.TrimRight(r.BaseURL, "/")
	if strings.HasPrefix(ref, "/") {
		return base + ref
	}
	prefix := r.MediaURL
	if prefix == "" {
		prefix = "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return base + strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(ref, "/")
}

func isAbsolute(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}
