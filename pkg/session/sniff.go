package session

import (
	"bytes"
	"encoding/base64"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/dop251/goja/parser"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// sniff decodes a 200 body, trying image, JSON, JavaScript and finally HTML.
// contentType is the response header and only guides charset detection.
func sniff(body []byte, contentType string, preprocess func([]byte) []byte) (any, ContentKind) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, KindNone
	}

	if mt := mimetype.Detect(body); strings.HasPrefix(mt.String(), "image/") {
		return "data:" + mt.String() + ";base64," + base64.StdEncoding.EncodeToString(body), KindImage
	}

	var decoded any
	if err := sonic.Unmarshal(body, &decoded); err == nil {
		return decoded, KindJSON
	}

	if utf8.Valid(body) {
		if program, err := parser.ParseFile(nil, "", string(body), 0); err == nil {
			return program, KindJavaScript
		}
	}

	if preprocess != nil {
		body = preprocess(body)
	}
	doc, err := parseHTML(body, contentType)
	if err != nil {
		return nil, KindNone
	}
	return doc, KindHTML
}

// parseHTML decodes body to UTF-8 before parsing. A BOM, the content type
// or a <meta charset> in the first KiB decide the encoding; when none is
// present chardet guesses one.
func parseHTML(body []byte, contentType string) (*goquery.Document, error) {
	_, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && !declaresCharset(body) {
		name = detectCharset(body)
	}
	r, err := charset.NewReader(bytes.NewReader(body), "text/html; charset="+name)
	if err != nil {
		return goquery.NewDocumentFromReader(bytes.NewReader(body))
	}
	return goquery.NewDocumentFromReader(r)
}

// declaresCharset mirrors the 1024-byte window the HTML prescan looks at.
func declaresCharset(body []byte) bool {
	head := body[:min(len(body), 1024)]
	return bytes.Contains(bytes.ToLower(head), []byte("charset"))
}

func detectCharset(body []byte) string {
	result, err := chardet.NewHtmlDetector().DetectBest(body)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
