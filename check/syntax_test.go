package check_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/optimode/emailverify/check"
	"github.com/optimode/emailverify/internal/parse"
)

func TestSyntaxChecker_Accepts(t *testing.T) {
	c := check.NewSyntaxChecker()

	for _, address := range []string{
		"jane.doe@example.com",
		"jane+newsletters@example.com",
		"o'brien@example.ie",
		`"jane doe"@example.com`,
		"postmaster@mx.mail.example.co.uk",
		"a@b.io",
		strings.Repeat("x", 64) + "@example.com",
		// internationalized domains and SMTPUTF8 local parts
		"kontakt@bücher.de",
		"info@xn--bcher-kva.de",
		"почта@пример.рф",
		"δοκιμή@example.gr",
	} {
		t.Run(address, func(t *testing.T) {
			assert.NoError(t, c.Check(parse.NewEmail(address)))
		})
	}
}

func TestSyntaxChecker_Rejects(t *testing.T) {
	c := check.NewSyntaxChecker()

	tests := []struct {
		address string
		reason  string // substring of the error; empty checks only the sentinel
	}{
		{"", "address is empty"},
		{"   ", "address is empty"},
		{"jane.example.com", "cannot be split"},
		{"jane@", "cannot be split"},
		{"@example.com", "cannot be split"},
		{strings.Repeat("x", 65) + "@example.com", "local part longer than 64"},
		{"x@" + strings.Repeat("d", 63) + "." + strings.Repeat("e", 63) + "." + strings.Repeat("f", 63) + "." + strings.Repeat("g", 61) + ".com", "longer than"},
		{".jane@example.com", "starts or ends with a dot"},
		{"jane.@example.com", "starts or ends with a dot"},
		{"jane..doe@example.com", "consecutive dots"},
		{"jane@localhost", "at least two labels"},
		{"jane@example.42", "top-level domain is numeric"},
		{"jane@-example.com", "hyphen"},
		{"jane@example-.com", "hyphen"},
		{"jane@[198.51.100.7]", "IP address literals"},
		{"jane@mail..example.com", ""},
		{"ja ne@example.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			err := c.Check(parse.NewEmail(tt.address))
			require.ErrorIs(t, err, check.ErrMalformed)
			if tt.reason != "" {
				assert.Contains(t, err.Error(), tt.reason)
			}
		})
	}
}
