package disposable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/optimode/emailverify/internal/disposable"
)

func TestList_Contains(t *testing.T) {
	l := disposable.New()

	tests := []struct {
		domain string
		want   bool
	}{
		{"mailinator.com", true},
		{"MAILINATOR.COM", true},
		{"yopmail.com", true},
		{"10minutemail.com", true},
		{"mailinator.com.", true},
		{"gmail.com", false},
		{"example.com", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, l.Contains(tt.domain), "domain %q", tt.domain)
	}
}

func TestList_Extra(t *testing.T) {
	base := disposable.New()
	l := disposable.New(" Burner.Example ", "")

	assert.True(t, l.Contains("burner.example"))
	assert.False(t, base.Contains("burner.example"))
	assert.Equal(t, base.Len()+1, l.Len())
}
