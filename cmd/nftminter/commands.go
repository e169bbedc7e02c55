package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/briandowns/spinner"
	"github.com/go-resty/resty/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// maxBatchPrompts mirrors the server's per-request cap.
const maxBatchPrompts = 10

type apiError struct {
	Detail    string `json:"detail"`
	ErrorKind string `json:"errorKind,omitempty"`
}

type generateOut struct {
	domain.GenerationResult
	Message string `json:"message"`
}

type mintOut struct {
	domain.MintOutcome
	RunID       string               `json:"runId"`
	FailedStage domain.PipelineState `json:"failedStage,omitempty"`
	Detail      string               `json:"detail,omitempty"`
	Upload      *domain.UploadResult `json:"upload,omitempty"`
}

func withSpinner(msg string, fn func() (*resty.Response, error)) (*resty.Response, error) {
	spin := spinner.New(spinner.CharSets[14], 120*time.Millisecond)
	spin.Suffix = " " + msg
	spin.Start()
	defer spin.Stop()
	return fn()
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	if e, ok := resp.Error().(*apiError); ok && e.Detail != "" {
		if e.ErrorKind != "" {
			return fmt.Errorf("error (%d, %s): %s", resp.StatusCode(), e.ErrorKind, e.Detail)
		}
		return fmt.Errorf("error (%d): %s", resp.StatusCode(), e.Detail)
	}
	return fmt.Errorf("error (%d): %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func healthCmd(s *session, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show which backends the server has configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			var out map[string]any
			resp, err := withSpinner("Checking server...", func() (*resty.Response, error) {
				return s.client().R().SetResult(&out).SetError(&apiError{}).Get("/health")
			})
			if err := checkResponse(resp, err); err != nil {
				return err
			}
			fmt.Printf("%s %v (%v)\n", ui.ok("status:"), out["status"], out["timestamp"])
			for _, k := range []string{"apiConfigured", "storageConfigured", "chainConfigured"} {
				mark := ui.err("no")
				if out[k] == true {
					mark = ui.ok("yes")
				}
				fmt.Printf("  %-18s %s\n", k, mark)
			}
			return nil
		},
	}
}

func generateCmd(s *session, ui *ui) *cobra.Command {
	var promptText, name, description string
	cmd := &cobra.Command{
		Use:     "generate",
		Short:   "Generate an image and its metadata locally on the server",
		Example: `nftminter generate --prompt "a red cube on a marble floor" --name "Red Cube"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(promptText) == "" {
				return errors.New("prompt is required")
			}
			var out generateOut
			resp, err := withSpinner("Generating image...", func() (*resty.Response, error) {
				return s.client().R().
					SetBody(map[string]string{"prompt": promptText, "name": name, "description": description}).
					SetResult(&out).SetError(&apiError{}).
					Post("/api/v1/generate-nft")
			})
			if err := checkResponse(resp, err); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ui.ok("[OK]"), out.Message)
			fmt.Printf("  image:    %s\n", out.ImagePath)
			fmt.Printf("  metadata: %s\n", out.MetadataPath)
			if out.Metadata != nil {
				fmt.Printf("  name:     %s\n", out.Metadata.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&promptText, "prompt", "", "Image prompt")
	cmd.Flags().StringVar(&name, "name", "", "NFT name")
	cmd.Flags().StringVar(&description, "description", "", "NFT description")
	return cmd
}

func batchCmd(s *session, ui *ui) *cobra.Command {
	var file string
	var chunk int
	cmd := &cobra.Command{
		Use:     "batch [prompt...]",
		Short:   "Generate many images, in chunks the server accepts",
		Example: "nftminter batch --file prompts.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompts := append([]string{}, args...)
			if file != "" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				fromFile, err := readPrompts(f)
				f.Close()
				if err != nil {
					return err
				}
				prompts = append(prompts, fromFile...)
			}
			if len(prompts) == 0 {
				return errors.New("no prompts given")
			}
			if chunk <= 0 || chunk > maxBatchPrompts {
				chunk = maxBatchPrompts
			}

			bar := progressbar.NewOptions(len(prompts),
				progressbar.OptionSetDescription("Generating"),
				progressbar.OptionSetWidth(24),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			var all []domain.GenerationResult
			for _, part := range chunkPrompts(prompts, chunk) {
				var out domain.BatchResult
				resp, err := s.client().R().
					SetBody(map[string]any{"prompts": part}).
					SetResult(&out).SetError(&apiError{}).
					Post("/api/v1/generate-batch")
				if err := checkResponse(resp, err); err != nil {
					_ = bar.Clear()
					return err
				}
				all = append(all, out.Results...)
				_ = bar.Add(len(part))
			}
			_ = bar.Finish()

			total := domain.NewBatchResult(all)
			for _, r := range total.Results {
				if r.Success {
					fmt.Printf("%s %s %s\n", ui.ok("[OK]"), r.Filename, ui.dim(r.Prompt))
				} else {
					fmt.Printf("%s %s %s\n", ui.err("[FAIL]"), r.Error, ui.dim(r.Prompt))
				}
			}
			fmt.Printf("%s %d succeeded, %d failed\n", ui.info("[INFO]"), total.Successful, total.Failed)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "File with one prompt per line (# starts a comment)")
	cmd.Flags().IntVar(&chunk, "chunk", maxBatchPrompts, "Prompts per request")
	return cmd
}

func mintCmd(s *session, ui *ui) *cobra.Command {
	var promptText, name, description, recipient string
	cmd := &cobra.Command{
		Use:     "mint",
		Short:   "Generate, pin and mint in one run",
		Example: `nftminter mint --prompt "a red cube" --name "Cube #1" --network sepolia`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(promptText) == "" || strings.TrimSpace(name) == "" {
				return errors.New("prompt and name are required")
			}
			body := map[string]string{"prompt": promptText, "name": name}
			if description != "" {
				body["description"] = description
			}
			if recipient != "" {
				body["recipientAddress"] = recipient
			}
			if s.network != "" {
				body["network"] = s.network
			}

			var out mintOut
			resp, err := withSpinner("Minting (generate, pin, send transaction)...", func() (*resty.Response, error) {
				return s.client().R().SetBody(body).SetResult(&out).SetError(&out).Post("/api/v1/mint-nft")
			})
			if err != nil {
				return err
			}
			if !resp.IsSuccess() {
				if out.RunID == "" {
					return checkResponse(resp, nil)
				}
				return fmt.Errorf("run %s failed at %s: %s", out.RunID, out.FailedStage, out.Detail)
			}
			fmt.Printf("%s Minted token %v on %s\n", ui.ok("[OK]"), out.TokenID, out.Network)
			if !out.TokenIDResolved() {
				fmt.Printf("  %s token id could not be confirmed from the receipt\n", ui.warn("[WARN]"))
			}
			fmt.Printf("  run:       %s\n", out.RunID)
			fmt.Printf("  tx:        %s\n", out.TransactionHash)
			fmt.Printf("  recipient: %s\n", out.Recipient)
			fmt.Printf("  tokenUri:  %s\n", out.TokenURI)
			if out.ExplorerURL != "" {
				fmt.Printf("  explorer:  %s\n", out.ExplorerURL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&promptText, "prompt", "", "Image prompt")
	cmd.Flags().StringVar(&name, "name", "", "NFT name")
	cmd.Flags().StringVar(&description, "description", "", "NFT description")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Recipient address (defaults to the minting account)")
	return cmd
}

func pipelineCmd(s *session, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <runId>",
		Short: "Show a pipeline run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out domain.PipelineResult
			resp, err := s.client().R().SetResult(&out).SetError(&apiError{}).
				Get("/api/v1/pipelines/" + url.PathEscape(args[0]))
			if err := checkResponse(resp, err); err != nil {
				return err
			}
			state := ui.info(string(out.State))
			switch out.State {
			case domain.StateDone:
				state = ui.ok(string(out.State))
			case domain.StateFailed:
				state = ui.err(string(out.State))
			}
			fmt.Printf("%s %s\n", state, out.RunID)
			if out.FailedStage != "" {
				fmt.Printf("  failed at %s: %s\n", out.FailedStage, out.Error)
			}
			b, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(ui.dim(string(b)))
			return nil
		},
	}
}

func tokenCmd(s *session, ui *ui) *cobra.Command {
	return &cobra.Command{
		Use:   "token <id>",
		Short: "Show owner and token URI of a minted token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out domain.TokenDetails
			req := s.client().R().SetResult(&out).SetError(&apiError{})
			if s.network != "" {
				req.SetQueryParam("network", s.network)
			}
			resp, err := req.Get("/api/v1/tokens/" + url.PathEscape(args[0]))
			if err := checkResponse(resp, err); err != nil {
				return err
			}
			fmt.Printf("%s token %v on %s\n", ui.ok("[OK]"), out.TokenID, out.Network)
			fmt.Printf("  owner:    %s\n", out.Owner)
			fmt.Printf("  tokenUri: %s\n", out.TokenURI)
			fmt.Printf("  contract: %s\n", out.ContractAddress)
			return nil
		},
	}
}

func downloadCmd(s *session, ui *ui) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a generated image and its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := filepath.Base(args[0])
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			imgPath := filepath.Join(dir, filename)
			resp, err := s.client().R().SetOutput(imgPath).Get("/api/v1/image/" + url.PathEscape(filename))
			if err != nil {
				return err
			}
			if !resp.IsSuccess() {
				_ = os.Remove(imgPath)
				return fmt.Errorf("error (%d): image %s not found", resp.StatusCode(), filename)
			}
			fmt.Printf("%s %s\n", ui.ok("[OK]"), imgPath)

			stem := strings.TrimSuffix(filename, filepath.Ext(filename))
			mdPath := filepath.Join(dir, stem+".json")
			resp, err = s.client().R().SetOutput(mdPath).Get("/api/v1/metadata/" + url.PathEscape(stem))
			if err != nil || !resp.IsSuccess() {
				_ = os.Remove(mdPath)
				fmt.Printf("%s no metadata for %s\n", ui.warn("[WARN]"), stem)
				return nil
			}
			fmt.Printf("%s %s\n", ui.ok("[OK]"), mdPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", ".", "Destination directory")
	return cmd
}

func readPrompts(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func chunkPrompts(prompts []string, size int) [][]string {
	var out [][]string
	for len(prompts) > 0 {
		n := min(size, len(prompts))
		out = append(out, prompts[:n])
		prompts = prompts[n:]
	}
	return out
}
