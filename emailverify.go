// Package emailverify checks whether an email address can receive mail
// without sending any. It combines syntax and domain checks, DNS lookups
// and a non-delivering SMTP conversation with the recipient's exchangers,
// and grades the outcome with a status and a quality score.
//
// Basic usage:
//
//	v := emailverify.New(emailverify.Config{MailFrom: "verify@myapp.com"})
//	defer v.Close()
//	result, err := v.VerifySingle(ctx, "user@example.com")
//
// Batches:
//
//	results, err := v.VerifyBulk(ctx, []string{"a@example.com", "b@example.org"})
//
// Verdicts are cached for Config.Cache.ResultTTL. Probes are throttled per
// recipient domain and capped globally by Config.MaxConcurrent.
package emailverify

import "github.com/optimode/emailverify/types"

// Result is a re-export from the types package so that consumers
// don't need to import the types package directly.
type Result = types.Result

// Details is a re-export.
type Details = types.Details

// Status is a re-export.
type Status = types.Status

// Status constants re-exported.
const (
	StatusValid       = types.StatusValid
	StatusInvalid     = types.StatusInvalid
	StatusRisky       = types.StatusRisky
	StatusUnknown     = types.StatusUnknown
	StatusCatchAll    = types.StatusCatchAll
	StatusDisposable  = types.StatusDisposable
	StatusRoleAccount = types.StatusRoleAccount
)
