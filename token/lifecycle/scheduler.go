package lifecycle

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start re-checks the token every refresh interval and replaces the current
// token with the result, whether or not the previous one was ever read. A tick
// that lands on an in-flight refresh queues behind it. Ticks do nothing until
// Initialize has established a session, so a check-sso start without one stays
// quiet. After a failed refresh the next tick is the retry.
// The returned stop function halts the schedule and waits for running ticks.
// Cancelling ctx has the same effect.
func (m *Manager) Start(ctx context.Context) (stop func()) {
	logger := cronLogger{logger: log.With().Str("component", "refresh_scheduler").Logger()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger)),
	)
	c.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
		if !m.Established() {
			logger.logger.Debug().Msg("No session established, skipping refresh")
			return
		}
		m.current.Store(m.EnsureFreshToken(ctx))
	}))
	c.Start()

	var once sync.Once
	stopped := make(chan struct{})
	stop = func() {
		once.Do(func() {
			close(stopped)
			<-c.Stop().Done()
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			stop()
		case <-stopped:
		}
	}()

	return stop
}

// cronLogger routes scheduler messages to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Err(err).Fields(keysAndValues).Msg(msg)
}
