package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	fhttp "github.com/bogdanfinn/fhttp"
	"github.com/cenkalti/backoff/v4"
)

// StatusError is returned for HTTP responses with a 4xx or 5xx status.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d", e.Code)
}

func (e *StatusError) Unwrap() error {
	return ErrRequestFailed
}

// RetryPolicy controls how a request is retried on transient failure.
type RetryPolicy struct {
	MaxRetries uint64
	Initial    time.Duration
	Multiplier float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Initial: 500 * time.Millisecond, Multiplier: 2}
}

// RetryableStatus reports whether a status code is worth another attempt.
func RetryableStatus(code int) bool {
	switch code {
	case fhttp.StatusRequestTimeout, fhttp.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599
}

// Transport errors from the TLS client are not reliably typed, so anything
// short of cancellation counts as a connection failure.
func retryableErr(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Do sends the request built by build and retries transient failures with
// exponential backoff. Responses with status >= 400 are converted into a
// *StatusError and their bodies closed. build is called once per attempt.
func Do(ctx context.Context, doer Doer, policy RetryPolicy, build func(context.Context) (*fhttp.Request, error)) (*fhttp.Response, error) {
	b := backoff.NewExponentialBackOff()
	if policy.Initial > 0 {
		b.InitialInterval = policy.Initial
	}
	if policy.Multiplier > 0 {
		b.Multiplier = policy.Multiplier
	}
	b.MaxElapsedTime = 0

	operation := func() (*fhttp.Response, error) {
		req, err := build(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := doer.Do(req)
		if err != nil {
			if ctx.Err() != nil || !retryableErr(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode < 400 {
			return resp, nil
		}

		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode, URL: req.URL.String()}
		if RetryableStatus(resp.StatusCode) {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	return backoff.RetryWithData(operation, backoff.WithContext(backoff.WithMaxRetries(b, policy.MaxRetries), ctx))
}

// Get is Do for a plain GET with headers.
func Get(ctx context.Context, doer Doer, policy RetryPolicy, target string, headers map[string]string) (*fhttp.Response, error) {
	return Do(ctx, doer, policy, func(ctx context.Context) (*fhttp.Request, error) {
		req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
		return req, nil
	})
}
