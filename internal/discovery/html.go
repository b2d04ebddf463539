package discovery

import (
	"bytes"
	"net/url"
	"path"

	"golang.org/x/net/html"

	"github.com/ks2178o2/callharbor/constants"
)

// extractHTMLAudioLinks walks anchor tags in a directory-listing page,
// resolves relative hrefs against the base URL, and keeps those with an
// allowed audio extension. Order is document order; duplicates are dropped on
// first-seen-wins so repeated scrapes stay deterministic.
func extractHTMLAudioLinks(base *url.URL, body []byte) []FileDescriptor {
	var out []FileDescriptor
	seen := make(map[string]struct{})

	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tokenizer.TagName()
		if len(name) != 1 || name[0] != 'a' || !hasAttr {
			continue
		}

		var href string
		for {
			key, val, more := tokenizer.TagAttr()
			if string(key) == "href" {
				href = string(val)
			}
			if !more {
				break
			}
		}
		if href == "" {
			continue
		}

		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if !constants.IsAllowedExt(path.Ext(resolved.Path)) {
			continue
		}
		abs := resolved.String()
		if _, dup := seen[abs]; dup {
			continue
		}
		seen[abs] = struct{}{}
		out = append(out, FileDescriptor{Name: fileNameFromURL(resolved), URL: abs})
	}
}
