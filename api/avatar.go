package api

import (
	"bytes"
	"encoding/json"
	"strings"
)

const avatarField = "avatar"

// NormalizeAvatarURL turns a server-relative avatar path ("/img/a.png") into an
// absolute URL under base. Absolute URLs, protocol-relative URLs and the empty
// string pass through, so applying it twice equals applying it once.
func NormalizeAvatarURL(base, avatar string) string {
	if avatar == "" {
		return ""
	}
	if strings.HasPrefix(avatar, "/") && !strings.HasPrefix(avatar, "//") {
		return strings.TrimRight(base, "/") + avatar
	}
	return avatar
}

// NormalizeAvatars rewrites avatar fields inside a response data member. It handles a
// single user record, a list of user records, and either of those nested one level
// under a "data" key. Anything else is returned unchanged.
func NormalizeAvatars(base string, raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return raw
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return raw
	}

	if !normalizeNode(base, doc, true) {
		return raw
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return raw
	}
	return out
}

func normalizeNode(base string, node any, descend bool) bool {
	switch v := node.(type) {
	case map[string]any:
		if normalizeRecord(base, v) {
			return true
		}
		if descend {
			if nested, ok := v["data"]; ok {
				return normalizeNode(base, nested, false)
			}
		}
	case []any:
		if len(v) == 0 {
			return false
		}
		first, ok := v[0].(map[string]any)
		if !ok {
			return false
		}
		if _, has := first[avatarField]; !has {
			return false
		}
		changed := false
		for _, item := range v {
			if rec, ok := item.(map[string]any); ok && normalizeRecord(base, rec) {
				changed = true
			}
		}
		return changed
	}
	return false
}

func normalizeRecord(base string, rec map[string]any) bool {
	val, ok := rec[avatarField]
	if !ok {
		return false
	}
	s, ok := val.(string)
	if !ok {
		return false
	}
	rec[avatarField] = NormalizeAvatarURL(base, s)
	return true
}
