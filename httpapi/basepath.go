package httpapi

import "strings"

// normalizeBasePath canonicalizes the path the dashboard is mounted under
// when sigdeck sits behind a reverse proxy: leading slash, no trailing
// slash, and "" for the root mount.
func normalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}

// buildBaseHref combines the external base URL and mount path into the
// href the dashboard templates emit in their <base> tag, so relative
// asset and SSE URLs resolve correctly. Returns "" when neither is set.
func buildBaseHref(baseURL, basePath string) string {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	path := normalizeBasePath(basePath)
	if base == "" && path == "" {
		return ""
	}
	if base == "" {
		return ensureTrailingSlash(path)
	}
	return ensureTrailingSlash(base + path)
}

func ensureTrailingSlash(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasSuffix(value, "/") {
		return value
	}
	return value + "/"
}
