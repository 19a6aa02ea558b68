package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/engine"
)

type WatchCmd struct {
	Interval time.Duration `help:"Status poll interval." default:"1m"`
	Refresh  time.Duration `help:"Countdown refresh interval." default:"1s"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, "")
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Println("Watching session (press Ctrl+C to stop)...")
	printNotices(s.Snapshot().UI.Notices)

	// Failed polls are retried sooner than the regular interval, backing
	// off up to a few intervals.
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = min(5*time.Second, c.Interval)
	b.MaxInterval = 5 * c.Interval

	refresh := time.NewTicker(c.Refresh)
	defer refresh.Stop()

	poll := time.NewTimer(c.Interval)
	defer poll.Stop()

	render(s.Snapshot())

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-refresh.C:
			render(s.Snapshot())
		case <-poll.C:
			if err := s.Sync(ctx); err != nil {
				log.Warn().Err(err).Msg("sync failed")
			}

			next := c.Interval
			if err := s.Snapshot().UI.SyncErr; err != nil {
				next = b.NextBackOff()
				log.Debug().Err(err).Dur("next", next).Msg("status poll failed, backing off")
			} else {
				b.Reset()
			}
			poll.Reset(next)
		}
	}
}

func render(snap engine.Snapshot) {
	line := snap.State.String()
	if snap.State == engine.StateLoggedIn {
		line += "  " + countdown(snap.Session.RemainingSeconds) + " left"
	}
	if snap.UI.SyncErr != nil {
		line += "  (offline)"
	}
	fmt.Printf("\r%-60s", line)
}

func countdown(seconds int) string {
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds%3600/60, seconds%60)
}
