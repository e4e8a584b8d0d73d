package emailverify

import (
	"context"

	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/optimode/emailverify/types"
)

// VerifyBulk verifies addresses concurrently. The result order matches
// the input order. Each verification still honours MaxConcurrent and the
// per-domain rate limit. An address whose verification fails is reported
// as a placeholder result with status unknown; the returned error is only
// set for configuration problems.
func (v *Verifier) VerifyBulk(ctx context.Context, addresses []string) ([]types.Result, error) {
	if v.err != nil {
		return nil, v.err
	}

	results := make([]types.Result, len(addresses))
	wg := conc.NewWaitGroup()
	for i, address := range addresses {
		wg.Go(func() {
			res, err := v.VerifySingle(ctx, address)
			if err != nil {
				v.logger.Warn("bulk verification failed", zap.String("email", address), zap.Error(err))
				res = types.Placeholder(err)
			}
			results[i] = res
		})
	}
	wg.Wait()
	return results, nil
}
