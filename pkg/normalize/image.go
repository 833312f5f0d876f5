package normalize

import (
	"net/url"
	"strings"
)

// Resolve makes ref absolute against base.
func Resolve(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String(), true
}

// Image resolves an image reference like Resolve and also returns the image's
// bare file name.
func Image(base *url.URL, ref string) (abs string, name string, ok bool) {
	abs, ok = Resolve(base, ref)
	if !ok {
		return "", "", false
	}
	u, err := url.Parse(abs)
	if err != nil {
		return "", "", false
	}
	name, _ = Path(u.Path)
	return abs, name, true
}
