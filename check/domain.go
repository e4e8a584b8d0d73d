package check

import (
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/optimode/emailverify/internal/disposable"
	"github.com/optimode/emailverify/internal/parse"
)

// DomainConfig is the domain checker configuration.
type DomainConfig struct {
	// ExtraDisposable extends the embedded disposable domain list.
	ExtraDisposable []string
	// TypoThreshold is the largest edit distance reported as a typo. 0 disables suggestions.
	TypoThreshold int
}

// DomainReport is what the domain checker knows about an address without
// touching the network.
type DomainReport struct {
	Disposable  bool
	RoleAccount bool
	Suggestion  string // closest known provider when the domain looks mistyped
}

// DomainChecker detects disposable domains, role accounts and typos.
type DomainChecker struct {
	cfg        DomainConfig
	disposable *disposable.List
	providers  []string
}

// rolePrefixes are local-part prefixes of shared or functional mailboxes.
var rolePrefixes = []string{
	"admin", "support", "info", "contact", "sales", "help", "newsletter",
	"noreply", "hello", "service", "marketing", "news", "feedback",
	"webmaster", "postmaster",
}

// popularProviders are the mailbox domains typos are matched against,
// grouped by operator. Earlier entries win ties.
var popularProviders = [][]string{
	{"gmail.com", "googlemail.com"},
	{"outlook.com", "hotmail.com", "live.com", "msn.com", "hotmail.co.uk"},
	{"yahoo.com", "ymail.com", "yahoo.co.uk", "yahoo.fr", "yahoo.de"},
	{"icloud.com", "me.com", "mac.com"},
	{"aol.com"},
	{"protonmail.com", "proton.me"},
	{"gmx.com", "gmx.de", "gmx.net", "web.de"},
	{"yandex.com", "yandex.ru", "mail.ru"},
	{"zoho.com", "fastmail.com", "tutanota.com", "mail.com"},
}

func NewDomainChecker(cfg DomainConfig) *DomainChecker {
	var providers []string
	for _, group := range popularProviders {
		providers = append(providers, group...)
	}
	return &DomainChecker{
		cfg:        cfg,
		disposable: disposable.New(cfg.ExtraDisposable...),
		providers:  providers,
	}
}

// Check inspects a syntactically valid address.
func (c *DomainChecker) Check(email parse.Email) DomainReport {
	// The disposable list is ASCII, typo matching works better on Unicode.
	return DomainReport{
		Disposable:  c.IsDisposable(email.Domain),
		RoleAccount: IsRoleAccount(email.Local),
		Suggestion:  c.Suggest(strings.ToLower(email.DomainUnicode)),
	}
}

// IsDisposable reports whether domain belongs to a throwaway mailbox provider.
func (c *DomainChecker) IsDisposable(domain string) bool {
	return c.disposable.Contains(domain)
}

// IsRoleAccount reports whether the local part starts with a role prefix.
func IsRoleAccount(local string) bool {
	local = strings.ToLower(local)
	for _, p := range rolePrefixes {
		if strings.HasPrefix(local, p) {
			return true
		}
	}
	return false
}

// Suggest returns the popular provider domain closest to domain when it is
// within TypoThreshold edits, or "" when domain is itself a provider or
// nothing is close enough.
func (c *DomainChecker) Suggest(domain string) string {
	if c.cfg.TypoThreshold <= 0 || slices.Contains(c.providers, domain) {
		return ""
	}

	suggestion, best := "", c.cfg.TypoThreshold
	for _, provider := range c.providers {
		if d := levenshtein.ComputeDistance(domain, provider); d <= best && (suggestion == "" || d < best) {
			suggestion, best = provider, d
		}
	}
	return suggestion
}
