package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

type profile struct {
	BaseURL   string `yaml:"baseUrl"`
	MintToken string `yaml:"mintToken,omitempty"`
	Network   string `yaml:"network,omitempty"`
}

type cliConfig struct {
	CurrentProfile string             `yaml:"currentProfile"`
	Profiles       map[string]profile `yaml:"profiles"`
}

func initCmd(profileName *string, ui *ui) *cobra.Command {
	var (
		baseURL  string
		network  string
		noPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize CLI config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]

			baseURL = firstNonEmpty(baseURL, prof.BaseURL, "http://localhost:8000")
			network = firstNonEmpty(network, prof.Network)
			if !noPrompt {
				reader := bufio.NewReader(os.Stdin)
				baseURL = prompt(reader, "Base URL", baseURL)
				network = prompt(reader, "Default network (optional)", network)
			}

			prof.BaseURL = strings.TrimSpace(baseURL)
			prof.Network = strings.TrimSpace(network)
			cfg.Profiles[active] = prof
			if cfg.CurrentProfile == "" || *profileName != "" {
				cfg.CurrentProfile = active
			}
			if err := saveConfig(cfg, cfgPath); err != nil {
				return err
			}
			fmt.Printf("%s Initialized profile '%s' at %s\n", ui.ok("[OK]"), active, cfgPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL for the nftminter API")
	cmd.Flags().StringVar(&network, "network", "", "Default network")
	cmd.Flags().BoolVar(&noPrompt, "no-prompt", false, "Disable interactive prompts")
	return cmd
}

func authCmd(profileName *string, ui *ui) *cobra.Command {
	auth := &cobra.Command{
		Use:   "auth",
		Short: "Manage the stored mint token",
	}

	var token string
	set := &cobra.Command{
		Use:   "set",
		Short: "Store the mint token in config",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(token) == "" {
				t, err := promptSecret("Mint token")
				if err != nil {
					return err
				}
				token = t
			}
			if token == "" {
				return errors.New("token is required")
			}
			return updateProfile(*profileName, func(p *profile) { p.MintToken = strings.TrimSpace(token) }, ui, "Mint token stored")
		},
	}
	set.Flags().StringVar(&token, "token", "", "Mint token (prompted when omitted)")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored mint token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateProfile(*profileName, func(p *profile) { p.MintToken = "" }, ui, "Mint token removed")
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the active profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, cfgPath, err := loadConfig()
			if err != nil {
				return err
			}
			active := resolveProfileName(*profileName, cfg)
			prof := cfg.Profiles[active]
			fmt.Printf("%s %s (%s)\n", ui.info("profile:"), active, ui.dim(cfgPath))
			fmt.Printf("  baseUrl:   %s\n", emptyOr(prof.BaseURL, "<unset>"))
			fmt.Printf("  network:   %s\n", emptyOr(prof.Network, "<server default>"))
			fmt.Printf("  mintToken: %s\n", maskToken(prof.MintToken))
			return nil
		},
	}

	auth.AddCommand(set, clearCmd, show)
	return auth
}

func updateProfile(profileName string, mutate func(*profile), ui *ui, msg string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	active := resolveProfileName(profileName, cfg)
	prof := cfg.Profiles[active]
	mutate(&prof)
	cfg.Profiles[active] = prof
	if cfg.CurrentProfile == "" || profileName != "" {
		cfg.CurrentProfile = active
	}
	if err := saveConfig(cfg, cfgPath); err != nil {
		return err
	}
	fmt.Printf("%s %s for '%s'\n", ui.ok("[OK]"), msg, active)
	return nil
}

func configPath() string {
	if v := strings.TrimSpace(os.Getenv("NFTMINTER_CONFIG_DIR")); v != "" {
		return filepath.Join(v, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".nftminter", "config.yaml")
}

func loadConfig() (cliConfig, string, error) {
	path := configPath()
	var cfg cliConfig
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cliConfig{Profiles: map[string]profile{}}, path, nil
		}
		return cliConfig{Profiles: map[string]profile{}}, path, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cliConfig{Profiles: map[string]profile{}}, path, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]profile{}
	}
	return cfg, path, nil
}

func saveConfig(cfg cliConfig, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func resolveProfileName(flag string, cfg cliConfig) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	if v := strings.TrimSpace(os.Getenv("NFTMINTER_PROFILE")); v != "" {
		return v
	}
	if cfg.CurrentProfile != "" {
		return cfg.CurrentProfile
	}
	return "default"
}

func prompt(r *bufio.Reader, label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}
	line, _ := r.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimSpace(line), nil
	}
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func maskToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "<unset>"
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + "..." + v[len(v)-4:]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func emptyOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
