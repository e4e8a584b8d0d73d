package parse

import "strings"

// googleDomains ignore dots in the local part and deliver plus-addressed
// mail to the base mailbox.
var googleDomains = map[string]struct{}{
	"gmail.com":      {},
	"googlemail.com": {},
}

// Normalize returns the canonical form of an address used for caching and
// probing: trimmed and lowercased, with Gmail dots and +tags folded away.
// Input without an @ is returned trimmed and lowercased.
func Normalize(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))

	atIdx := strings.LastIndex(email, "@")
	if atIdx < 0 {
		return email
	}
	local, domain := email[:atIdx], email[atIdx+1:]

	// Misplaced dots are left alone so the syntax check still sees them.
	if _, ok := googleDomains[domain]; ok && wellPlacedDots(local) {
		if plus := strings.IndexByte(local, '+'); plus >= 0 {
			local = local[:plus]
		}
		local = strings.ReplaceAll(local, ".", "")
	}
	return local + "@" + domain
}

func wellPlacedDots(local string) bool {
	return !strings.HasPrefix(local, ".") && !strings.HasSuffix(local, ".") && !strings.Contains(local, "..")
}
