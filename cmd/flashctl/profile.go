package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultURL = "http://127.0.0.1:8645"

// Profile is the per-user flashctl configuration.
type Profile struct {
	URL      string `yaml:"url"`
	Keystore string `yaml:"keystore,omitempty"`
}

func defaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flashctl.yaml"
	}
	return filepath.Join(home, ".flashctl.yaml")
}

// LoadProfile reads path. A missing file yields the defaults.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{URL: defaultURL}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	p.URL = strings.TrimRight(strings.TrimSpace(p.URL), "/")
	if p.URL == "" {
		p.URL = defaultURL
	}
	return p, nil
}

// Save writes the profile to path with owner-only permissions.
func (p *Profile) Save(path string) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o600)
}

func newProfileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update the flashctl profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd.OutOrStdout(), a.profile)
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Persist --url and --keystore into the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.profile.Save(a.profilePath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "profile written to %s\n", a.profilePath)
			return nil
		},
	})
	return cmd
}
