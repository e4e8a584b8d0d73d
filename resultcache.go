package emailverify

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/optimode/emailverify/internal/metrics"
	"github.com/optimode/emailverify/internal/parse"
	"github.com/optimode/emailverify/types"
)

// ResultKeyPrefix prefixes the cache key of a verdict.
const ResultKeyPrefix = "email_verify:"

func (v *Verifier) cachedResult(ctx context.Context, email string) (types.Result, bool) {
	raw, err := v.cache.Get(ctx, ResultKeyPrefix+email)
	if err != nil {
		if errors.Is(err, types.ErrCacheMiss) {
			metrics.RecordCacheLookup("result", "miss")
		} else {
			metrics.RecordCacheLookup("result", "error")
			v.logger.Debug("result cache read failed", zap.String("email", email), zap.Error(err))
		}
		return types.Result{}, false
	}

	var res types.Result
	if err := json.Unmarshal(raw, &res); err != nil || res.Status == "" {
		metrics.RecordCacheLookup("result", "error")
		v.logger.Debug("result cache entry corrupt", zap.String("email", email), zap.Error(err))
		return types.Result{}, false
	}
	metrics.RecordCacheLookup("result", "hit")
	return types.NewResult(res.Email, res.Status, res.QualityScore, res.Details), true
}

func (v *Verifier) storeResult(ctx context.Context, res types.Result) {
	raw, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, ResultKeyPrefix+res.Email, raw, v.cfg.Cache.ResultTTL); err != nil {
		v.logger.Debug("result cache write failed", zap.String("email", res.Email), zap.Error(err))
	}
}

// Forget drops the cached verdict for address so the next verification
// runs the full pipeline.
func (v *Verifier) Forget(ctx context.Context, address string) error {
	if v.err != nil {
		return v.err
	}
	return v.cache.Delete(ctx, ResultKeyPrefix+parse.Normalize(address))
}
