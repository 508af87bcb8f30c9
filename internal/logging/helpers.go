package logging

import (
	"net/url"
	"strings"
)

// MaskToken keeps only the edges of a secret so log lines stay correlatable.
func MaskToken(token string) string {
	switch n := len(token); {
	case n > 8:
		return token[:4] + "..." + token[n-4:]
	case n > 4:
		return token[:2] + "..." + token[n-2:]
	case n > 2:
		return token[:1] + "..." + token[n-1:]
	}
	return token
}

func maskAuthorizationHeader(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) < 2 {
		return MaskToken(value)
	}
	return parts[0] + " " + MaskToken(parts[1])
}

func maskSensitiveHeaderValue(key, value string) string {
	lowerKey := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(lowerKey, "authorization"):
		return maskAuthorizationHeader(value)
	case strings.Contains(lowerKey, "api-key"),
		strings.Contains(lowerKey, "apikey"),
		strings.Contains(lowerKey, "token"),
		strings.Contains(lowerKey, "secret"),
		strings.Contains(lowerKey, "cookie"):
		return MaskToken(value)
	default:
		return value
	}
}

// MaskHeaders returns a copy of headers safe to log.
func MaskHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = maskSensitiveHeaderValue(k, v)
	}
	return out
}

// MaskURL masks secret-looking query parameters of a URL string.
func MaskURL(raw string) string {
	idx := strings.IndexByte(raw, '?')
	if idx < 0 {
		return raw
	}
	return raw[:idx+1] + maskSensitiveQuery(raw[idx+1:])
}

func maskSensitiveQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(keyPart)
		if err != nil {
			decodedKey = keyPart
		}
		if !shouldMaskQueryParam(decodedKey) {
			continue
		}
		decodedValue, err := url.QueryUnescape(valuePart)
		if err != nil {
			decodedValue = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(MaskToken(strings.TrimSpace(decodedValue)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func shouldMaskQueryParam(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false
	}
	key = strings.TrimSuffix(key, "[]")
	if key == "key" || key == "code" || strings.Contains(key, "api-key") || strings.Contains(key, "apikey") || strings.Contains(key, "api_key") {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret") || strings.Contains(key, "password")
}
