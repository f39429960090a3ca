package utils

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry initializes Sentry for error tracking. It reports false when no DSN is set.
func InitSentry(dsn, environment string) bool {
	if dsn == "" {
		logrus.Info("SENTRY_DSN not set, error tracking disabled")
		return false
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 0.2,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return false
	}

	logrus.Info("Sentry initialized")
	return true
}

// CaptureError reports err to Sentry with extra context; no-op when Sentry is not initialized
func CaptureError(err error, extras map[string]interface{}) {
	if err == nil || sentry.CurrentHub().Client() == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range extras {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// FlushSentry waits for buffered events before shutdown
func FlushSentry() {
	if sentry.CurrentHub().Client() != nil {
		sentry.Flush(2 * time.Second)
	}
}
