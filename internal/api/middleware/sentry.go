package middleware

import (
	"github.com/getsentry/sentry-go"
)

// SetSentryPool tags the current Sentry scope with the user pool a
// request resolved to, so a panic report can be filtered by pool.
func SetSentryPool(poolID string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("pool_id", poolID)
	})
}

// SetSentryTarget tags the current Sentry scope with the Cognito
// operation name a request dispatched to (the X-Amz-Target suffix).
func SetSentryTarget(target string) {
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("target", target)
	})
}
