package retry

import "context"

// DoWithResultTyped is a type-safe wrapper around Retryer.DoWithResult that
// spares callers the any-assertion on the result.
//
// Usage:
//
//	resp, err := retry.DoWithResultTyped(r, ctx, func() (*ChatResponse, error) {
//	    return provider.Completion(ctx, req)
//	})
func DoWithResultTyped[T any](r Retryer, ctx context.Context, fn func() (T, error)) (T, error) {
	result, err := r.DoWithResult(ctx, func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}
