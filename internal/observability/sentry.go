// Package observability wires crash reporting for swallowed errors.
package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry initializes Sentry when a DSN is configured. The returned
// function flushes pending events and is safe to defer unconditionally.
func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

// CaptureErr reports an error that was handled locally but should still be
// visible to operators.
func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}
