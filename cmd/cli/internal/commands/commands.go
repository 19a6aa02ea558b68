package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/cmd/cli/internal/credentials"
	"github.com/wolfeidau/attendance/internal/capture"
	"github.com/wolfeidau/attendance/internal/client"
	"github.com/wolfeidau/attendance/internal/engine"
	"github.com/wolfeidau/attendance/internal/history"
	"github.com/wolfeidau/attendance/internal/models"
	"github.com/wolfeidau/attendance/internal/recovery"
	"github.com/wolfeidau/attendance/internal/status"
	"github.com/wolfeidau/attendance/internal/store/file"
)

type Globals struct {
	Debug      bool
	Version    string
	Server     string
	Token      string
	EmployeeID string
	Location   string
	StateDir   string
	Budget     time.Duration
}

// session bundles an engine with the client it talks through.
type session struct {
	*engine.Engine
	client *client.Client
}

// openSession wires the engine for the configured employee. image is the
// frame file used as the camera; it may be empty for commands that never
// capture.
func openSession(globals *Globals, image string) (*session, error) {
	employeeID, err := globals.employeeID()
	if err != nil {
		return nil, err
	}

	st, err := file.NewStore(globals.StateDir, employeeID, globals.Budget)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	c, err := client.New(client.Config{
		ServerURL: globals.Server,
		Timeout:   30 * time.Second,
		Token:     globals.Token,
		CacheDir:  filepath.Join(st.Dir(), "http-cache"),
		Debug:     globals.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	norm := history.NewNormalizer(time.Local)
	syncer := status.NewSynchronizer(c, norm, globals.Budget)
	loader := history.NewLoader(c, st, norm)

	var dev capture.Device
	if image != "" {
		dev = capture.NewFileDevice(image)
	}

	e, err := engine.New(engine.Config{
		EmployeeID: employeeID,
		Location:   globals.Location,
	}, engine.Deps{
		Store:    st,
		Backend:  c,
		Sync:     syncer,
		Resolver: recovery.NewResolver(syncer, loader, time.Local),
		History:  loader,
		Camera:   capture.NewController(dev),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	return &session{Engine: e, client: c}, nil
}

func (g *Globals) employeeID() (string, error) {
	if g.EmployeeID != "" {
		return g.EmployeeID, nil
	}
	if g.Token == "" {
		return "", errors.New("employee id is required (use --employee-id, --token or the profile)")
	}

	id, err := credentials.EmployeeID(g.Token, time.Now())
	if err != nil {
		return "", fmt.Errorf("failed to read employee id from token: %w", err)
	}
	return id, nil
}

// printSnapshot writes the session state and any pending notices.
func printSnapshot(snap engine.Snapshot) {
	fmt.Printf("State:      %s\n", snap.State)
	if snap.Session.IsActive {
		fmt.Printf("Record:     %s\n", orDash(snap.Session.ActiveRecordID))
		if ts := snap.Session.LoginTimestamp; ts != nil {
			fmt.Printf("Checked in: %s\n", ts.Local().Format(time.DateTime))
		}
		fmt.Printf("Remaining:  %s\n", models.FormatDuration(time.Duration(snap.Session.RemainingSeconds)*time.Second))
	}
	printNotices(snap.UI.Notices)
}

func printNotices(notices []engine.Notice) {
	for _, n := range notices {
		if n.Err != nil {
			fmt.Fprintf(os.Stderr, "[%s] %s: %v\n", n.Level, n.Message, n.Err)
			continue
		}
		fmt.Fprintf(os.Stderr, "[%s] %s\n", n.Level, n.Message)
	}
}

func printSummary(s engine.Summary) {
	fmt.Println("Session summary")
	fmt.Printf("  Record:    %s\n", orDash(s.RecordID))
	fmt.Printf("  Check-in:  %s\n", s.CheckIn.Local().Format(time.DateTime))
	fmt.Printf("  Check-out: %s\n", s.CheckOut.Local().Format(time.DateTime))
	fmt.Printf("  Worked:    %s\n", models.FormatDuration(s.Duration))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func closeSession(s *session) {
	if err := s.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close session")
	}
}
