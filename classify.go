package emailverify

import "github.com/optimode/emailverify/types"

// Quality scores attached to each verdict.
const (
	QualityValid        = 95
	QualityCatchAll     = 75
	QualityInconclusive = 65 // probe ran but was not conclusive
	QualityAddressOnly  = 60 // domain exists without mail exchangers, or DNS was unreachable
	QualityUnknown      = 50
	QualityRejected     = 40
	QualityNoSuchDomain = 30
	QualityDisposable   = 20
	QualityMalformed    = 0
)

// Classify maps an SMTP probe outcome to a status and quality score.
// catchAll only matters when the outcome is valid.
func Classify(outcome types.Outcome, catchAll bool) (types.Status, int) {
	switch outcome {
	case types.OutcomeValid:
		if catchAll {
			return types.StatusCatchAll, QualityCatchAll
		}
		return types.StatusValid, QualityValid
	case types.OutcomeInvalid:
		return types.StatusInvalid, QualityRejected
	case types.OutcomeUnknown, types.OutcomeNoMX, types.OutcomeError:
		return types.StatusRisky, QualityInconclusive
	default:
		return types.StatusUnknown, QualityUnknown
	}
}
