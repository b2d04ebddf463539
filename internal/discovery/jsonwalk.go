package discovery

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"

	"github.com/ks2178o2/callharbor/constants"
)

// extractJSONAudioURLs recursively walks an arbitrary JSON document collecting
// string values that are absolute http(s) URLs with an allowed audio
// extension. The document shape is not assumed; file manifests from different
// vendors nest URLs at unpredictable depths.
func extractJSONAudioURLs(body []byte) []FileDescriptor {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil
	}

	var out []FileDescriptor
	seen := make(map[string]struct{})
	walkJSON(doc, func(s string) {
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		if !constants.IsAllowedExt(path.Ext(u.Path)) {
			return
		}
		if _, dup := seen[s]; dup {
			return
		}
		seen[s] = struct{}{}
		out = append(out, FileDescriptor{Name: fileNameFromURL(u), URL: s})
	})
	return out
}

func walkJSON(node any, visit func(string)) {
	switch v := node.(type) {
	case string:
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			visit(v)
		}
	case []any:
		for _, item := range v {
			walkJSON(item, visit)
		}
	case map[string]any:
		for _, item := range v {
			walkJSON(item, visit)
		}
	}
}
