package fetch

import (
	"mime"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?\s*([a-zA-Z0-9_\-:.]+)`)

// decodeHTML converts body to UTF-8 using the charset from the Content-Type
// header, then a <meta> declaration in the first 1024 bytes.
func decodeHTML(body []byte, contentType string) (string, error) {
	cs := charsetFromContentType(contentType)
	if cs == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharset.FindSubmatch(head); m != nil {
			cs = strings.ToLower(string(m[1]))
		}
	}

	if cs == "" || cs == "utf-8" || cs == "utf8" {
		if !utf8.Valid(body) {
			return strings.ToValidUTF8(string(body), "�"), nil
		}
		return string(body), nil
	}

	enc, err := htmlindex.Get(cs)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: unknown charset %q", cs)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", eris.Wrapf(err, "fetch: decode %s", cs)
	}
	return string(out), nil
}

func charsetFromContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
