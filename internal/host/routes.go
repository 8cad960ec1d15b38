package host

import "strings"

// BaseURLRoutes resolves symbolic routes against the public base URL using
// static path templates with {placeholder} segments.
type BaseURLRoutes struct {
	BaseURL string
	Paths   map[string]string
}

// RouteURL resolves a route name. args are placeholder name/value pairs
// substituted into the path template. Unknown routes resolve to the base
// URL so a misconfigured route never produces a broken external link.
func (r BaseURLRoutes) RouteURL(route string, args ...string) string {
	base := strings.TrimRight(r.BaseURL, "/")
	path, ok := r.Paths[route]
	if !ok {
		return base
	}
	for i := 0; i+1 < len(args); i += 2 {
		path = strings.ReplaceAll(path, "{"+args[i]+"}", args[i+1])
	}
	return base + path
}
