package config

import (
	"strings"
)

// secretKeys are the dot keys never printed in full.
var secretKeys = map[string]bool{
	"telegram.token": true,
}

func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns nested config objects into dot keys:
// {"api": {"base_url": "x"}} becomes {"api.base_url": "x"}.
// Arrays such as escalation.targets are leaves.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
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

// Unflatten is the inverse of Flatten. A scalar sitting where a deeper key
// needs an object is replaced by the object.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for key, v := range flat {
		parent, leaf := out, key
		for {
			head, rest, found := strings.Cut(leaf, ".")
			if !found {
				break
			}
			next, ok := parent[head].(map[string]any)
			if !ok {
				next = make(map[string]any)
				parent[head] = next
			}
			parent, leaf = next, rest
		}
		parent[leaf] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with secret string values hidden. A bot
// token keeps its numeric bot id ("123456:***") so the bot stays
// identifiable; anything else becomes "***".
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			continue
		}
		if id, _, found := strings.Cut(s, ":"); found && id != "" && strings.Trim(id, "0123456789") == "" {
			out[k] = id + ":***"
		} else {
			out[k] = "***"
		}
	}
	return out
}
