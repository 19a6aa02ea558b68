package commands

import (
	"context"
	"fmt"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, "")
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	printSnapshot(s.Snapshot())
	return nil
}
