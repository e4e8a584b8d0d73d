package check

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/badoux/checkmail"

	"github.com/optimode/emailverify/internal/parse"
)

// ErrMalformed is returned for addresses that fail syntax validation.
var ErrMalformed = errors.New("emailverify: malformed address")

// RFC 5321 size limits, in octets.
const (
	maxAddressLen = 254
	maxLocalLen   = 64
	maxDomainLen  = 253
	maxLabelLen   = 63
)

// atextSpecials are the non-alphanumeric characters RFC 5322 allows in an
// unquoted local part, plus the dot.
const atextSpecials = "!#$%&'*+/=?^_`{|}~-."

// SyntaxChecker decides whether an address is well formed. Unicode local
// parts (SMTPUTF8) and internationalized domains are accepted.
type SyntaxChecker struct {
	rules []func(parse.Email) string
}

func NewSyntaxChecker() *SyntaxChecker {
	return &SyntaxChecker{rules: []func(parse.Email) string{
		checkLengths,
		checkLocal,
		checkDomain,
		checkFormat,
	}}
}

// Check returns nil when the address is well formed, or an error wrapping
// ErrMalformed that names the first rule it breaks.
func (c *SyntaxChecker) Check(email parse.Email) error {
	switch {
	case email.Raw == "":
		return malformed("address is empty")
	case !email.Valid:
		return malformed("address cannot be split into local part and domain")
	}
	for _, rule := range c.rules {
		if reason := rule(email); reason != "" {
			return malformed(reason)
		}
	}
	return nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", ErrMalformed, reason)
}

func checkLengths(e parse.Email) string {
	switch {
	case len(e.Raw) > maxAddressLen:
		return fmt.Sprintf("address longer than %d characters", maxAddressLen)
	case len(e.Local) > maxLocalLen:
		return fmt.Sprintf("local part longer than %d characters", maxLocalLen)
	case len(e.Domain) > maxDomainLen:
		return fmt.Sprintf("domain longer than %d characters", maxDomainLen)
	}
	return ""
}

// checkLocal applies dot-atom rules. Quoted local parts were unquoted by
// parse and may contain anything.
func checkLocal(e parse.Email) string {
	if e.Quoted {
		return ""
	}
	local := e.Local
	if local == "" {
		return "local part is empty"
	}
	if local[0] == '.' || local[len(local)-1] == '.' {
		return "local part starts or ends with a dot"
	}
	if strings.Contains(local, "..") {
		return "local part has consecutive dots"
	}
	for _, r := range local {
		switch {
		case r > unicode.MaxASCII:
			if unicode.IsControl(r) {
				return "local part has a control character"
			}
		case isAlnum(r) || strings.ContainsRune(atextSpecials, r):
		default:
			return fmt.Sprintf("local part has disallowed character %q", r)
		}
	}
	return ""
}

// checkDomain runs on the Unicode form so messages stay readable; IDNA
// validation already happened in parse.
func checkDomain(e parse.Email) string {
	domain := e.DomainUnicode
	if domain == "" {
		return "domain is empty"
	}
	// Address literals have no MX to probe.
	if strings.HasPrefix(domain, "[") || strings.HasSuffix(domain, "]") {
		return "IP address literals are not accepted"
	}

	labels := strings.Split(domain, ".")
	if len(labels) == 1 {
		return "domain needs at least two labels"
	}
	for _, label := range labels {
		if reason := checkLabel(label); reason != "" {
			return reason
		}
	}
	if strings.IndexFunc(labels[len(labels)-1], func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return "top-level domain is numeric"
	}
	return ""
}

func checkLabel(label string) string {
	switch {
	case label == "":
		return "domain has an empty label"
	case len(label) > maxLabelLen:
		return fmt.Sprintf("domain label longer than %d characters", maxLabelLen)
	case label[0] == '-' || label[len(label)-1] == '-':
		return "domain label starts or ends with a hyphen"
	}
	for _, r := range label {
		if r != '-' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return fmt.Sprintf("domain label has disallowed character %q", r)
		}
	}
	return ""
}

// checkFormat cross-checks plain ASCII addresses with checkmail.
func checkFormat(e parse.Email) string {
	if e.Quoted || !e.ASCII() {
		return ""
	}
	if err := checkmail.ValidateFormat(e.Address()); err != nil {
		return err.Error()
	}
	return ""
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
