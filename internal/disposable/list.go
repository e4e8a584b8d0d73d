// Package disposable answers whether a domain belongs to a throwaway
// mailbox provider.
package disposable

import (
	_ "embed"
	"strings"
)

//go:embed list.txt
var rawList string

var builtin = parse(rawList)

func parse(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			set[strings.ToLower(line)] = struct{}{}
		}
	}
	return set
}

// List is the embedded domain list plus any extra domains supplied at
// construction. It is read-only after New and safe for concurrent use.
type List struct {
	extra map[string]struct{}
}

// New returns a List that also matches the given extra domains.
func New(extra ...string) *List {
	l := &List{extra: make(map[string]struct{}, len(extra))}
	for _, d := range extra {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			l.extra[d] = struct{}{}
		}
	}
	return l
}

// Contains reports whether domain is a known disposable domain.
func (l *List) Contains(domain string) bool {
	domain = strings.ToLower(strings.TrimSuffix(domain, "."))
	if _, ok := builtin[domain]; ok {
		return true
	}
	_, ok := l.extra[domain]
	return ok
}

// Len returns the number of known domains.
func (l *List) Len() int {
	return len(builtin) + len(l.extra)
}
