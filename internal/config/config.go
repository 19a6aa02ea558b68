package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alecthomas/kong"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath is the profile read when --config is not given.
const DefaultPath = "~/.attendance/config.yaml"

var validate = validator.New()

// Profile holds per-device defaults for the CLI flags. Flags and environment
// variables take precedence over it.
type Profile struct {
	Server     string        `yaml:"server" validate:"omitempty,url"`
	Token      string        `yaml:"token"`
	EmployeeID string        `yaml:"employee_id" validate:"omitempty,max=64"`
	Location   string        `yaml:"location" validate:"omitempty,max=128"`
	StateDir   string        `yaml:"state_dir"`
	Budget     time.Duration `yaml:"budget"`
	Image      string        `yaml:"image"`
}

// Parse decodes and validates a YAML profile. Unknown keys are rejected.
func Parse(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	if p.Budget < 0 {
		return nil, fmt.Errorf("invalid profile: budget %s is negative", p.Budget)
	}

	return &p, nil
}

// Loader is a kong.ConfigurationLoader for YAML profiles.
func Loader(r io.Reader) (kong.Resolver, error) {
	p, err := Parse(r)
	if err != nil {
		return nil, err
	}
	return p.Resolver(), nil
}

// Resolver exposes the profile as flag defaults keyed by flag name.
func (p *Profile) Resolver() kong.Resolver {
	values := map[string]string{
		"server":      p.Server,
		"token":       p.Token,
		"employee-id": p.EmployeeID,
		"location":    p.Location,
		"state-dir":   p.StateDir,
		"image":       p.Image,
	}
	if p.Budget > 0 {
		values["budget"] = p.Budget.String()
	}

	return kong.ResolverFunc(func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		if v := values[flag.Name]; v != "" {
			return v, nil
		}
		return nil, nil
	})
}
