package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tsanders/revgate/pkg/costest"
	"github.com/tsanders/revgate/pkg/review"
)

func alwaysClassify(t review.ErrorType) classifier {
	return func(error) review.ErrorType { return t }
}

func TestRetrySucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	resp, usage, errType, err := Retry(context.Background(), review.ProviderOpenAI, "gpt-4o", 2, alwaysClassify(review.ErrorConnection), func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		calls++
		return review.ReviewResponse{Summary: "ok"}, costest.Usage{InputTokens: 10}, nil
	})
	require.NoError(t, err)
	require.Equal(t, review.ErrorType(""), errType)
	require.Equal(t, "ok", resp.Summary)
	require.Equal(t, 10, usage.InputTokens)
	require.Equal(t, 1, calls)
}

func TestRetryStopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	wantErr := errors.New("bad api key")
	_, _, errType, err := Retry(context.Background(), review.ProviderOpenAI, "gpt-4o", 2, alwaysClassify(review.ErrorAuthentication), func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		calls++
		return review.ReviewResponse{}, costest.Usage{}, wantErr
	})
	require.Error(t, err)
	require.Equal(t, review.ErrorAuthentication, errType)
	require.Equal(t, 1, calls)
}

func TestRetryExhaustsAttemptsOnRetryableError(t *testing.T) {
	calls := 0
	wantErr := errors.New("connection reset")
	_, _, errType, err := Retry(context.Background(), review.ProviderOpenAI, "gpt-4o", 2, alwaysClassify(review.ErrorConnection), func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		calls++
		return review.ReviewResponse{}, costest.Usage{}, wantErr
	})
	require.Error(t, err)
	require.Equal(t, review.ErrorConnection, errType)
	require.Equal(t, 2, calls)
}

func TestRetrySucceedsAfterOneRetryableFailure(t *testing.T) {
	calls := 0
	resp, _, errType, err := Retry(context.Background(), review.ProviderOpenAI, "gpt-4o", 2, alwaysClassify(review.ErrorTimeout), func(ctx context.Context) (review.ReviewResponse, costest.Usage, error) {
		calls++
		if calls == 1 {
			return review.ReviewResponse{}, costest.Usage{}, errors.New("timeout")
		}
		return review.ReviewResponse{Summary: "recovered"}, costest.Usage{}, nil
	})
	require.NoError(t, err)
	require.Equal(t, review.ErrorType(""), errType)
	require.Equal(t, "recovered", resp.Summary)
	require.Equal(t, 2, calls)
}

func TestBackoffDelayIsClampedToRange(t *testing.T) {
	require.Equal(t, backoffMin, backoffDelay(0))
	require.Equal(t, backoffMax, backoffDelay(10))
}
