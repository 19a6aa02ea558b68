package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/cmd/cli/internal/commands"
	"github.com/wolfeidau/attendance/internal/config"
	"github.com/wolfeidau/attendance/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Status    commands.StatusCmd    `cmd:"" help:"Show the current attendance session"`
		Checkin   commands.CheckinCmd   `cmd:"" help:"Check in with a photo"`
		Checkout  commands.CheckoutCmd  `cmd:"" help:"Check out with a photo"`
		History   commands.HistoryCmd   `cmd:"" help:"List your attendance history"`
		Dashboard commands.DashboardCmd `cmd:"" help:"List attendance across the organisation"`
		Watch     commands.WatchCmd     `cmd:"" help:"Show the work countdown and keep the session in sync"`

		Debug      bool            `help:"Enable debug mode."`
		Server     string          `help:"Attendance API base URL." env:"ATTENDANCE_SERVER" default:"http://localhost:8080/api"`
		Token      string          `help:"Bearer token for the attendance API." env:"ATTENDANCE_TOKEN"`
		EmployeeID string          `help:"Employee id, read from the token when empty." env:"ATTENDANCE_EMPLOYEE_ID"`
		Location   string          `help:"Location recorded on check-in." env:"ATTENDANCE_LOCATION" default:"office"`
		StateDir   string          `help:"Directory for the local session state." env:"ATTENDANCE_STATE_DIR" type:"path"`
		Budget     time.Duration   `help:"Daily work budget." env:"ATTENDANCE_BUDGET" default:"8h"`
		Config     kong.ConfigFlag `help:"YAML profile path." env:"ATTENDANCE_CONFIG"`
		Version    kong.VersionFlag
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.Configuration(config.Loader, config.DefaultPath),
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		Server:     cli.Server,
		Token:      cli.Token,
		EmployeeID: cli.EmployeeID,
		Location:   cli.Location,
		StateDir:   cli.StateDir,
		Budget:     cli.Budget,
	})
	cmd.FatalIfErrorf(err)
}
