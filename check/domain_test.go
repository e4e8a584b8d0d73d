package check_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/emailverify/check"
	"github.com/optimode/emailverify/internal/parse"
)

func TestDomainChecker_Disposable(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{ExtraDisposable: []string{"Throwaway.Test"}})

	assert.True(t, c.Check(parse.NewEmail("user@mailinator.com")).Disposable)
	assert.True(t, c.Check(parse.NewEmail("user@throwaway.test")).Disposable)
	assert.False(t, c.Check(parse.NewEmail("user@example.com")).Disposable)
}

func TestIsRoleAccount(t *testing.T) {
	tests := []struct {
		local string
		want  bool
	}{
		{"admin", true},
		{"administrator", true},
		{"Support", true},
		{"info.team", true},
		{"helpdesk", true},
		{"noreply", true},
		{"postmaster", true},
		{"john", false},
		{"alice.smith", false},
		{"myadmin", false},
		{"john.support", false},
		{"sales-team", true},
	}
	for _, tt := range tests {
		t.Run(tt.local, func(t *testing.T) {
			assert.Equal(t, tt.want, check.IsRoleAccount(tt.local))
		})
	}
}

func TestDomainChecker_Suggest(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{TypoThreshold: 2})

	tests := []struct {
		domain string
		want   string
	}{
		{"gmial.com", "gmail.com"},
		{"gmal.com", "gmail.com"},
		{"yaho.com", "yahoo.com"},
		{"hotmial.com", "hotmail.com"},
		{"gmail.com", ""},
		{"me.com", ""},
		{"example.com", ""},
		{"company-mail.io", ""},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Suggest(tt.domain))
		})
	}
}

func TestDomainChecker_SuggestDisabled(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{})
	assert.Empty(t, c.Suggest("gmial.com"))
}

func TestDomainChecker_CheckUsesUnicodeForSuggestion(t *testing.T) {
	c := check.NewDomainChecker(check.DomainConfig{TypoThreshold: 2})

	r := c.Check(parse.NewEmail("sales@GMIAL.com"))
	assert.True(t, r.RoleAccount)
	assert.False(t, r.Disposable)
	assert.Equal(t, "gmail.com", r.Suggestion)
}
