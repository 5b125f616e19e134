package gateway

import (
	"context"
	"math"
	"time"

	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/metrics"
	"github.com/tsanders/revgate/pkg/review"
)

// backoffMultiplier, backoffMin and backoffMax mirror the tenacity-style
// policy every provider gateway wraps its call in: exponential backoff
// starting at backoffMin, doubling per attempt, capped at backoffMax.
const (
	backoffMultiplier = 1
	backoffMin        = time.Second
	backoffMax        = 8 * time.Second
)

// Attempt is one provider API call, returning either a successful parsed
// response with its usage, or a classified error. Retry calls it up to
// maxAttempts times, stopping early on a non-retryable ErrorType.
type Attempt func(ctx context.Context) (review.ReviewResponse, costest.Usage, error)

// classifier turns an arbitrary error from an Attempt into the ErrorType
// used to decide whether another attempt is worth making.
type classifier func(error) review.ErrorType

// Retry runs attempt up to maxAttempts times with exponential backoff,
// returning as soon as attempt succeeds or a non-retryable error occurs.
// maxAttempts is 2 for OpenAI/Anthropic/Google and 3 for OpenRouter, per
// spec §4.5. provider and model label every metric this call records.
func Retry(ctx context.Context, provider review.Provider, model string, maxAttempts int, classify classifier, attempt Attempt) (review.ReviewResponse, costest.Usage, review.ErrorType, error) {
	return RetryGeneric(ctx, provider, model, maxAttempts, classify, attempt)
}

// RetryGeneric is Retry generalized over the attempt's success type, so the
// same backoff/classification policy can drive non-review calls (the
// synthesis summary/recommendation calls of pkg/synth, spec §4.9, which
// request a different response shape than a code review). Every call
// records gateway call/error/retry metrics, since this function is the one
// chokepoint every provider's ReviewCode and CallJSON both pass through.
func RetryGeneric[T any](ctx context.Context, provider review.Provider, model string, maxAttempts int, classify classifier, attempt func(ctx context.Context) (T, costest.Usage, error)) (T, costest.Usage, review.ErrorType, error) {
	var zero T
	var lastErr error
	var lastType review.ErrorType = review.ErrorAPI

	start := time.Now()
	m := metrics.Default()

	for i := 0; i < maxAttempts; i++ {
		resp, usage, err := attempt(ctx)
		if err == nil {
			m.RecordGatewayCall(string(provider), model, "success", time.Since(start).Seconds())
			return resp, usage, "", nil
		}

		lastErr = err
		lastType = classify(err)

		if !lastType.Retryable() {
			m.RecordGatewayError(string(provider), string(lastType))
			m.RecordGatewayCall(string(provider), model, "error", time.Since(start).Seconds())
			return zero, costest.Usage{}, lastType, err
		}

		if i == maxAttempts-1 {
			break
		}

		m.RecordRetry(string(provider))

		select {
		case <-ctx.Done():
			m.RecordGatewayError(string(provider), string(review.ErrorTimeout))
			m.RecordGatewayCall(string(provider), model, "error", time.Since(start).Seconds())
			return zero, costest.Usage{}, review.ErrorTimeout, ctx.Err()
		case <-time.After(backoffDelay(i)):
		}
	}

	m.RecordGatewayError(string(provider), string(lastType))
	m.RecordGatewayCall(string(provider), model, "error", time.Since(start).Seconds())
	return zero, costest.Usage{}, lastType, lastErr
}

// backoffDelay returns backoffMultiplier * 2^attempt seconds, clamped to
// [backoffMin, backoffMax].
func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(backoffMultiplier) * math.Pow(2, float64(attempt)) * float64(time.Second))
	if d < backoffMin {
		return backoffMin
	}
	if d > backoffMax {
		return backoffMax
	}
	return d
}
