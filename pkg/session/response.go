package session

import (
	"errors"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja/ast"
)

// Synthetic status codes for requests that never produced an HTTP status.
const (
	StatusTooManyRedirects = 1000
	StatusConnectionError  = 1001
)

// ErrNotHTML is returned when HTML content is requested from a response that
// was sniffed as something else.
var ErrNotHTML = errors.New("response content is not html")

// ContentKind says how a response body was decoded.
type ContentKind int

const (
	// KindNone means no body: empty response or transport failure.
	KindNone ContentKind = iota
	// KindStatus means the request did not return 200; Content is the status text.
	KindStatus
	// KindImage content is a base64 data URI string.
	KindImage
	// KindJSON content is the decoded JSON value.
	KindJSON
	// KindJavaScript content is a *ast.Program.
	KindJavaScript
	// KindHTML content is a *goquery.Document.
	KindHTML
)

func (k ContentKind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindImage:
		return "image"
	case KindJSON:
		return "json"
	case KindJavaScript:
		return "javascript"
	case KindHTML:
		return "html"
	default:
		return "none"
	}
}

// Response is a fetched and sniffed page.
type Response struct {
	Content    any
	Kind       ContentKind
	StatusCode int
	// URL is the final URL after redirects.
	URL   *url.URL
	Query url.Values
}

// OK reports whether the shop answered 200.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == 200
}

// HTML returns the parsed document.
func (r *Response) HTML() (*goquery.Document, error) {
	if r == nil || r.Kind != KindHTML {
		return nil, ErrNotHTML
	}
	doc, ok := r.Content.(*goquery.Document)
	if !ok {
		return nil, ErrNotHTML
	}
	return doc, nil
}

// JSON returns the decoded JSON value.
func (r *Response) JSON() (any, bool) {
	if r == nil || r.Kind != KindJSON {
		return nil, false
	}
	return r.Content, true
}

// Script returns the parsed JavaScript program.
func (r *Response) Script() (*ast.Program, bool) {
	if r == nil || r.Kind != KindJavaScript {
		return nil, false
	}
	p, ok := r.Content.(*ast.Program)
	return p, ok
}

// Text returns string content: the data URI of an image or the status text.
func (r *Response) Text() (string, bool) {
	if r == nil {
		return "", false
	}
	s, ok := r.Content.(string)
	return s, ok
}
