package hostpattern

import (
	"iter"
	"net/url"
	"strings"
)

const (
	// AnyHTTP is the canonical protocol-merged prefix matching both http and https.
	AnyHTTP = "https?://"
	// legacyAnyHTTP is accepted on input and rewritten to AnyHTTP.
	legacyAnyHTTP = "http?://"
	// Global matches every location and is always the least specific candidate.
	Global = "*"
)

// target holds the pieces of a location that candidate patterns are built from.
// host keeps the port (www.brave.com:8080), hostname does not.
type target struct {
	scheme   string
	host     string
	hostname string
}

func parseTarget(location string) (target, bool) {
	location = strings.TrimSpace(location)
	if location == "" {
		return target{}, false
	}
	u, err := url.Parse(location)
	if err != nil {
		return target{}, false
	}
	t := target{
		scheme:   strings.ToLower(u.Scheme),
		host:     strings.ToLower(u.Host),
		hostname: strings.ToLower(u.Hostname()),
	}
	if t.scheme == "" || t.host == "" || t.hostname == "" {
		return target{}, false
	}
	return t, true
}

func (t target) isHTTP() bool {
	return t.scheme == "http" || t.scheme == "https"
}

// Candidates yields every host pattern that can apply to location, most specific
// first. Unparsable locations yield nothing. The sequence is a pure function of
// location and may be ranged over any number of times.
func Candidates(location string) iter.Seq[string] {
	return func(yield func(string) bool) {
		t, ok := parseTarget(location)
		if !ok {
			return
		}
		prefix := t.scheme + "://"
		httpLike := t.isHTTP()

		first := []string{
			prefix + t.host,
			prefix + t.hostname + ":*",
			prefix + "*",
		}
		if httpLike {
			first = append(first, AnyHTTP+t.host, AnyHTTP+t.hostname+":*")
		}
		for _, p := range first {
			if !yield(p) {
				return
			}
		}

		// Walk up the host one label at a time. Each step emits wildcards for the
		// host it starts with, so www.brave.com yields *.www.brave.com, *.brave.com
		// and finally *.com.
		host := t.host
		for host != "" {
			hostname := hostnameOf(host)
			step := []string{
				prefix + "*." + host,
				prefix + "*." + hostname + ":*",
			}
			if httpLike {
				step = append(step, AnyHTTP+"*."+host, AnyHTTP+"*."+hostname+":*")
			}
			for _, p := range step {
				if !yield(p) {
					return
				}
			}
			host = stripLabel(host)
		}

		yield(Global)
	}
}

// CandidatePatterns collects Candidates into a slice.
func CandidatePatterns(location string) []string {
	var out []string
	for p := range Candidates(location) {
		out = append(out, p)
	}
	return out
}

func stripLabel(host string) string {
	_, rest, found := strings.Cut(host, ".")
	if !found {
		return ""
	}
	return rest
}

func hostnameOf(host string) string {
	return (&url.URL{Host: host}).Hostname()
}

// NormalizePattern trims a host pattern and rewrites the legacy http?:// prefix
// to https?:// so both spellings address the same rule.
func NormalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if strings.HasPrefix(pattern, legacyAnyHTTP) {
		return AnyHTTP + strings.TrimPrefix(pattern, legacyAnyHTTP)
	}
	return pattern
}

// Origin returns scheme://host for location, the pattern used for origin-scoped
// permissions such as flash.
func Origin(location string) (string, bool) {
	t, ok := parseTarget(location)
	if !ok {
		return "", false
	}
	return t.scheme + "://" + t.host, true
}

// Host returns the host[:port] portion of a host pattern, with any protocol
// prefix removed. The global pattern and protocol-wide patterns return false.
func Host(pattern string) (string, bool) {
	pattern = NormalizePattern(pattern)
	_, rest, found := strings.Cut(pattern, "://")
	if !found {
		return "", false
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" || rest == "*" {
		return "", false
	}
	return strings.ToLower(rest), true
}
