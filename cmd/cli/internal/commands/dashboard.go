package commands

import (
	"context"
	"fmt"
)

type DashboardCmd struct {
	Limit int `help:"Maximum number of records to show (0 for all)." default:"50"`
}

func (c *DashboardCmd) Run(ctx context.Context, globals *Globals) error {
	s, err := openSession(globals, "")
	if err != nil {
		return err
	}
	defer closeSession(s)

	h, err := s.Dashboard(ctx, s.client)
	if err != nil {
		return fmt.Errorf("failed to load dashboard: %w", err)
	}

	printRecords(h, c.Limit, true)
	return nil
}
