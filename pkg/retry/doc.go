// Package retry runs operations under a bounded retry policy.
//
// Media downloads use a fixed pause between a small number of tries; feed source
// invocations use exponential backoff. Typed errors from feedmirror/pkg/errors decide
// whether a failure is worth another attempt: not-found and auth errors stop at once.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return fetch(ctx, locator)
//	}, retry.FixedConfig(3, 5*time.Second, log))
package retry
