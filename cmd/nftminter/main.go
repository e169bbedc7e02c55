package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
)

type ui struct {
	title func(a ...any) string
	ok    func(a ...any) string
	info  func(a ...any) string
	warn  func(a ...any) string
	err   func(a ...any) string
	dim   func(a ...any) string
}

func newUI() *ui {
	return &ui{
		title: color.New(color.FgHiCyan, color.Bold).SprintFunc(),
		ok:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		info:  color.New(color.FgCyan).SprintFunc(),
		warn:  color.New(color.FgYellow).SprintFunc(),
		err:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:   color.New(color.FgHiBlack).SprintFunc(),
	}
}

// session is the resolved connection state shared by every subcommand.
type session struct {
	baseURL   string
	mintToken string
	network   string
	timeout   time.Duration
}

func (s *session) client() *resty.Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(s.baseURL, "/")).
		SetTimeout(s.timeout).
		SetHeader("Accept", "application/json")
	if s.mintToken != "" {
		c.SetAuthToken(s.mintToken)
	}
	return c
}

func main() {
	s := &session{
		baseURL:   getenv("NFTMINTER_BASE_URL", "http://localhost:8000"),
		mintToken: getenv("NFTMINTER_MINT_TOKEN", ""),
		network:   getenv("NFTMINTER_NETWORK", ""),
		timeout:   10 * time.Minute,
	}
	profileName := getenv("NFTMINTER_PROFILE", "")
	ui := newUI()

	root := &cobra.Command{
		Use:   "nftminter",
		Short: "nftminter CLI",
		Long:  "nftminter CLI for generating AI images, pinning them to IPFS and minting them as NFTs.",
	}
	root.SetHelpTemplate(helpTemplate(ui))
	root.SilenceUsage = true

	root.PersistentFlags().StringVar(&s.baseURL, "base-url", s.baseURL, "Base URL for the nftminter API")
	root.PersistentFlags().StringVar(&s.mintToken, "mint-token", s.mintToken, "Bearer token for the mint endpoint")
	root.PersistentFlags().StringVar(&s.network, "network", s.network, "Target network (defaults to the server's)")
	root.PersistentFlags().DurationVar(&s.timeout, "timeout", s.timeout, "Request timeout")
	root.PersistentFlags().StringVar(&profileName, "profile", profileName, "Config profile")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, _, _ := loadConfig()
		prof := cfg.Profiles[resolveProfileName(profileName, cfg)]

		flags := cmd.Flags()
		if !flags.Changed("base-url") && os.Getenv("NFTMINTER_BASE_URL") == "" && prof.BaseURL != "" {
			s.baseURL = prof.BaseURL
		}
		if !flags.Changed("mint-token") && os.Getenv("NFTMINTER_MINT_TOKEN") == "" && prof.MintToken != "" {
			s.mintToken = prof.MintToken
		}
		if !flags.Changed("network") && os.Getenv("NFTMINTER_NETWORK") == "" && prof.Network != "" {
			s.network = prof.Network
		}
		if _, err := url.ParseRequestURI(s.baseURL); err != nil {
			return fmt.Errorf("invalid base url %q", s.baseURL)
		}
		return nil
	}

	root.AddCommand(initCmd(&profileName, ui))
	root.AddCommand(authCmd(&profileName, ui))
	root.AddCommand(healthCmd(s, ui))
	root.AddCommand(generateCmd(s, ui))
	root.AddCommand(batchCmd(s, ui))
	root.AddCommand(mintCmd(s, ui))
	root.AddCommand(pipelineCmd(s, ui))
	root.AddCommand(tokenCmd(s, ui))
	root.AddCommand(downloadCmd(s, ui))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.err("[ERROR]"), err.Error())
		os.Exit(1)
	}
}

func helpTemplate(ui *ui) string {
	title := ui.title("nftminter")
	return fmt.Sprintf(`%s: AI image to NFT pipeline

Usage:
  {{.UseLine}}

Commands:
{{range .Commands}}{{if (or .IsAvailableCommand .IsAdditionalHelpTopicCommand)}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

Flags:
  {{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}

Global Flags:
  {{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}

Config:
  %s

Examples:
  nftminter init
  nftminter generate --prompt "a red cube on a marble floor" --name "Red Cube"
  nftminter batch --file prompts.txt
  nftminter mint --prompt "a red cube" --name "Cube #1" --network sepolia
  nftminter token 12 --network sepolia

`, title, configPath())
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
