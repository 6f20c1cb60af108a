package studio

import (
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format predicates are built once at package init and never mutated, so the
// table is safe to read from any number of goroutines.

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	uriRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)
)

// formatCheckers maps a format name to its predicate. The "url" format is
// absent on purpose: it needs full URL parsing rather than a pattern and is
// special-cased in checkFormat.
var formatCheckers = map[string]func(string) bool{
	"email": emailRe.MatchString,
	"uri":   uriRe.MatchString,
	"uuid": func(s string) bool {
		return uuid.Validate(s) == nil
	},
	"date-time": func(s string) bool {
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	},
	"date": func(s string) bool {
		_, err := time.Parse("2006-01-02", s)
		return err == nil
	},
	"time": func(s string) bool {
		for _, layout := range []string{"15:04:05", "15:04:05Z07:00"} {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
		return false
	},
	"ipv4": func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil && strings.Contains(s, ".")
	},
	"ipv6": func(s string) bool {
		return strings.Contains(s, ":") && net.ParseIP(s) != nil
	},
}

// checkFormat reports whether s satisfies the named format. Unknown format
// names are accepted: the validator treats them as annotations, while the
// conformance profile separately warns about names outside its allow-list.
func checkFormat(format, s string) bool {
	if format == "url" {
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	}

	checker, ok := formatCheckers[format]
	if !ok {
		return true
	}
	return checker(s)
}
