package commands

import (
	"context"
	"fmt"
)

type CheckoutCmd struct {
	Image string `help:"Path of the frame written by the camera tool." type:"path" required:""`
}

func (c *CheckoutCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, c.Image)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	if err := s.RequestCheckOut(ctx); err != nil {
		printNotices(s.Snapshot().UI.Notices)
		return fmt.Errorf("failed to start check-out: %w", err)
	}

	if err := s.Capture(ctx); err != nil {
		printNotices(s.Snapshot().UI.Notices)
		return err
	}

	fmt.Println("Checked out")
	if summary, ok := s.TakeSummary(); ok {
		printSummary(summary)
	}
	return nil
}
