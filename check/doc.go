// Package check contains the stages of the verification pipeline:
// syntax, offline domain checks, exchanger resolution and the SMTP probe.
// The stages can be used on their own, but the recommended approach is
// the Verifier in the github.com/optimode/emailverify package, which adds
// caching, rate limiting and classification.
package check
