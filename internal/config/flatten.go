package config

import (
	"strings"
)

// secretKeys lists flat keys whose values should never be printed in
// full.
var secretKeys = map[string]bool{
	"runtime.api_key": true,
}

// Flatten converts a nested map into a flat map with dot-separated keys.
func Flatten(m map[string]any) map[string]any {
	flat := make(map[string]any)
	flattenInto(flat, "", m)
	return flat
}

func flattenInto(flat map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			flattenInto(flat, key, nested)
			continue
		}
		flat[key] = v
	}
}

// Unflatten reverses Flatten, rebuilding a nested map from dot keys.
func Unflatten(flat map[string]any) map[string]any {
	nested := make(map[string]any)
	for key, v := range flat {
		parts := strings.Split(key, ".")
		cur := nested
		for i, part := range parts {
			if i == len(parts)-1 {
				cur[part] = v
				break
			}
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
	}
	return nested
}

// MaskSecrets returns a copy of the flat map with secret values replaced
// by a short prefix and asterisks. Empty secrets stay empty.
func MaskSecrets(flat map[string]any) map[string]any {
	masked := make(map[string]any, len(flat))
	for k, v := range flat {
		if secretKeys[k] {
			if s, ok := v.(string); ok && s != "" {
				if len(s) > 4 {
					masked[k] = s[:4] + "****"
				} else {
					masked[k] = "****"
				}
				continue
			}
		}
		masked[k] = v
	}
	return masked
}

// IsSecretKey reports whether a flat config key holds a secret.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}
