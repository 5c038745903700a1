// Package dedup suppresses duplicate request admissions using
// deterministic request fingerprints.
package dedup

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/dataservice-go/dataservice/pkg/model"
)

// Field names selectable via the deduplication_keys configuration.
const (
	FieldURL      = "url"
	FieldMethod   = "method"
	FieldParams   = "params"
	FieldFormData = "form_data"
	FieldJSONData = "json_data"
)

// DefaultKeyFields is used when no key fields are configured.
var DefaultKeyFields = []string{FieldURL}

// ValidField reports whether name is a recognized key field.
func ValidField(name string) bool {
	switch name {
	case FieldURL, FieldMethod, FieldParams, FieldFormData, FieldJSONData:
		return true
	}
	return false
}

// NormalizeURL canonicalizes a URL for fingerprinting: scheme and host are
// lowercased, default ports and trailing slashes are stripped, and query
// parameters are sorted. Logically identical URLs map to one string.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("normalize url %q: %w", raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Host[:strings.LastIndex(u.Host, ":")]
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = u.Query().Encode() // Encode sorts keys
	u.Fragment = ""
	return u.String(), nil
}

// Fingerprint derives the admission key for a request from the configured
// fields. Equal requests (by the configured fields) produce equal
// fingerprints regardless of object identity.
func Fingerprint(req *model.Request, fields []string) string {
	if len(fields) == 0 {
		fields = DefaultKeyFields
	}
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		switch field {
		case FieldURL:
			u, err := NormalizeURL(req.URL)
			if err != nil {
				u = req.URL
			}
			parts = append(parts, "url="+u)
		case FieldMethod:
			parts = append(parts, "method="+string(req.Method))
		case FieldParams:
			parts = append(parts, "params="+encodeMap(req.Params))
		case FieldFormData:
			parts = append(parts, "form_data="+encodeMap(req.FormData))
		case FieldJSONData:
			parts = append(parts, "json_data="+encodeJSON(req.JSONData))
		}
	}
	return strings.Join(parts, ":")
}

// encodeMap renders a string map as sorted k=v pairs.
func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+m[k])
	}
	return strings.Join(pairs, "&")
}

// encodeJSON renders a JSON body deterministically. encoding/json sorts
// map keys, which is all the stability needed here.
func encodeJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Sprintf("%v", m)
	}
	return string(b)
}
