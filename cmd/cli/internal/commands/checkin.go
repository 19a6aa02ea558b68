package commands

import (
	"context"
	"fmt"

	"github.com/wolfeidau/attendance/internal/engine"
)

type CheckinCmd struct {
	Image string `help:"Path of the frame written by the camera tool." type:"path" required:""`
}

func (c *CheckinCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, c.Image)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if err := s.RequestCheckIn(ctx); err != nil {
		printNotices(s.Snapshot().UI.Notices)
		return fmt.Errorf("failed to start check-in: %w", err)
	}

	// Already checked in: the engine left a notice and nothing else to do.
	if s.Snapshot().State == engine.StateLoggedIn {
		printSnapshot(s.Snapshot())
		return nil
	}

	if err := s.Capture(ctx); err != nil {
		printNotices(s.Snapshot().UI.Notices)
		return err
	}

	fmt.Println("Checked in")
	printSnapshot(s.Snapshot())
	return nil
}
