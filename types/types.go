// Package types contains the shared types for emailverify.
// This package does not import anything from other emailverify packages
// to avoid circular imports.
package types

// Status is the final verdict of one verification.
type Status string

const (
	StatusValid       Status = "valid"
	StatusInvalid     Status = "invalid"
	StatusRisky       Status = "risky"
	StatusUnknown     Status = "unknown"
	StatusCatchAll    Status = "catch_all"
	StatusDisposable  Status = "disposable"
	StatusRoleAccount Status = "role_account"
)

// Verified reports whether the status counts as a deliverable address.
func (s Status) Verified() bool {
	return s == StatusValid || s == StatusCatchAll
}

// Outcome is what an SMTP probe concluded about a recipient.
type Outcome string

const (
	OutcomeValid   Outcome = "valid"
	OutcomeInvalid Outcome = "invalid"
	OutcomeUnknown Outcome = "unknown"
	OutcomeError   Outcome = "error"
	OutcomeNoMX    Outcome = "no_mx"
	// OutcomeThrottled means the probe never ran because the domain's
	// rate limit could not be acquired within the configured wait.
	OutcomeThrottled Outcome = "throttled"
)

// ProbeResult is the outcome of an SMTP probe together with the reply
// that decided it.
type ProbeResult struct {
	Outcome Outcome `json:"outcome"`
	Host    string  `json:"host,omitempty"`
	Code    int     `json:"code,omitempty"`
	Message string  `json:"message,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// Details holds the diagnostic flags collected along the pipeline.
type Details struct {
	SyntaxValid    bool `json:"syntax_valid"`
	IsDisposable   bool `json:"is_disposable"`
	IsRoleAccount  bool `json:"is_role_account"`
	DomainVerified bool `json:"domain_verified"`
	SMTPVerified   bool `json:"smtp_verified"`
	IsCatchAll     bool `json:"is_catch_all"`
	QualityScore   int  `json:"quality_score"`

	Suggestion string `json:"suggestion,omitempty"`
	MXHost     string `json:"mx_host,omitempty"`
	SMTPCode   int    `json:"smtp_code,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Result is the immutable verdict for one address.
// Build it with NewResult so that IsVerified always follows Status.
type Result struct {
	Email        string  `json:"email"`
	Status       Status  `json:"status"`
	QualityScore int     `json:"quality_score"`
	Details      Details `json:"details"`
	IsVerified   bool    `json:"is_verified"`
}

// NewResult assembles a Result. The quality score is mirrored into the
// details and IsVerified is derived from the status.
func NewResult(email string, status Status, quality int, details Details) Result {
	details.QualityScore = quality
	return Result{
		Email:        email,
		Status:       status,
		QualityScore: quality,
		Details:      details,
		IsVerified:   status.Verified(),
	}
}

// PlaceholderEmail is the address reported for a verification that
// failed before it could produce its own result.
const PlaceholderEmail = "unknown"

// Placeholder is the result recorded in a bulk batch for an address whose
// pipeline failed unexpectedly.
func Placeholder(err error) Result {
	text := "unknown error"
	if err != nil {
		text = err.Error()
	}
	return NewResult(PlaceholderEmail, StatusUnknown, 0, Details{Error: text})
}

// RecordType is a DNS record type understood by a Resolver.
type RecordType string

const (
	RecordMX   RecordType = "MX"
	RecordA    RecordType = "A"
	RecordAAAA RecordType = "AAAA"
)

// Record is a single DNS answer. For MX records Value is the exchanger
// host and Preference its priority; for A/AAAA records Value is the address.
type Record struct {
	Type       RecordType
	Value      string
	Preference uint16
}

// Reply is an SMTP server reply.
type Reply struct {
	Code int
	Text string
}
