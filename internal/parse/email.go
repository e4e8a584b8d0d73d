// Package parse splits and canonicalizes email addresses.
package parse

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// Email is a parsed address as seen by the pipeline stages.
type Email struct {
	Raw           string // trimmed input
	Local         string // part before the last @, quotes removed
	Domain        string // ASCII/Punycode domain, used for DNS and SMTP
	DomainUnicode string // Unicode domain, used for display and typo matching
	Quoted        bool   // local part was written in quoted form
	Valid         bool   // false when the input could not be split or the domain fails IDNA
}

// Address returns the address with the ASCII domain, the form sent in
// SMTP commands.
func (e Email) Address() string {
	if e.Quoted {
		return `"` + e.Local + `"@` + e.Domain
	}
	return e.Local + "@" + e.Domain
}

// ASCII reports whether the local part is plain ASCII.
func (e Email) ASCII() bool {
	return isASCII(e.Local)
}

// NewEmail parses raw. Raw is always populated; Valid reports whether the
// remaining fields are meaningful. Internationalized local parts (RFC 6531)
// and domains (IDNA2008) are accepted.
func NewEmail(raw string) Email {
	raw = strings.TrimSpace(raw)
	local, domain, ok := split(raw)
	if !ok {
		return Email{Raw: raw}
	}
	ascii, display, ok := domainForms(domain)
	if !ok {
		return Email{Raw: raw}
	}

	e := Email{Raw: raw, Local: local, Domain: ascii, DomainUnicode: display, Valid: true}
	if at := strings.LastIndexByte(raw, '@'); at > 1 && raw[0] == '"' && raw[at-1] == '"' {
		e.Quoted = true
		e.Local = strings.Trim(local, `"`)
	}
	return e
}

// split prefers net/mail, which understands quoting and angle brackets,
// and falls back to the last @ for the UTF-8 local parts it refuses.
func split(raw string) (local, domain string, ok bool) {
	addr := raw
	for _, candidate := range []string{raw, "<" + raw + ">"} {
		if parsed, err := mail.ParseAddress(candidate); err == nil {
			addr = parsed.Address
			break
		}
	}
	at := strings.LastIndexByte(addr, '@')
	if at <= 0 || at == len(addr)-1 {
		return "", "", false
	}
	return addr[:at], addr[at+1:], true
}

// domainForms returns the lowercased ASCII (Punycode) and Unicode forms of
// domain. ok is false when a Unicode domain fails IDNA2008 lookup rules.
func domainForms(domain string) (ascii, display string, ok bool) {
	domain = strings.ToLower(domain)
	if !isASCII(domain) {
		a, err := idna.Lookup.ToASCII(domain)
		if err != nil {
			return "", "", false
		}
		return a, domain, true
	}
	if u, err := idna.Display.ToUnicode(domain); err == nil {
		return domain, u, true
	}
	return domain, domain, true
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
