package config

import (
	"strings"
)

// Keys are treated as secret when their last segment is one of these, or when
// they are listed in secretPaths.
var (
	secretLeaves = []string{"api_key", "token"}
	secretPaths  = map[string]bool{"redis.url": true}
)

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	if secretPaths[key] {
		return true
	}
	leaf := key[strings.LastIndex(key, ".")+1:]
	for _, s := range secretLeaves {
		if leaf == s {
			return true
		}
	}
	return false
}

// Flatten turns nested JSON objects into dotted keys:
// {"search": {"provider": "brave"}} becomes {"search.provider": "brave"}.
// Empty objects produce no keys.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			if prefix != "" {
				k = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(k, child)
				continue
			}
			out[k] = v
		}
	}
	walk("", m)
	return out
}

// Unflatten is the inverse of Flatten.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		node := out
		for _, part := range parts[:len(parts)-1] {
			child, ok := node[part].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[part] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with credential values reduced to their
// last four characters, e.g. "***3456".
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if !IsSecretKey(k) {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			out[k] = maskValue(s)
		}
	}
	return out
}

func maskValue(s string) string {
	if len(s) > 4 {
		s = s[len(s)-4:]
	}
	return "***" + s
}
