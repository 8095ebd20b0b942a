package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"vidparse/internal/media"
	"vidparse/internal/ui"
)

var flagJSON bool

var parseCmd = &cobra.Command{
	Use:   "parse [share text]",
	Short: "Print the direct media URLs for a share link",
	Args:  cobra.ArbitraryArgs,
	RunE:  parseRun,
}

func init() {
	parseCmd.Flags().BoolVarP(&flagJSON, "json", "j", false, "Output the result as JSON")
}

// localClient is the history client name for CLI use.
const localClient = "cli"

func parseRun(cmd *cobra.Command, args []string) error {
	text, err := shareText(args)
	if err != nil {
		return err
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r, err := p.svc.Parse(ctx, text, localClient)
	if err != nil {
		return userError(err)
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(r)
	}
	printResult(cmd, r)
	return nil
}

// shareText joins args, or prompts for input when there are none.
func shareText(args []string) (string, error) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text != "" {
		return text, nil
	}
	text, err := ui.Input("分享链接")
	if err != nil {
		return "", fmt.Errorf("no share text provided")
	}
	return text, nil
}

func printResult(cmd *cobra.Command, r media.ParseResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "平台:   %s\n", r.Platform)
	fmt.Fprintf(out, "视频ID: %s\n", r.VideoID)
	if r.Title != "" {
		fmt.Fprintf(out, "标题:   %s\n", r.Title)
	}
	fmt.Fprintf(out, "视频:   %s\n", r.VideoURL)
	if r.AudioURL != "" {
		fmt.Fprintf(out, "音频:   %s\n", r.AudioURL)
	}
	if r.CoverURL != "" {
		fmt.Fprintf(out, "封面:   %s\n", r.CoverURL)
	}
}

// userError pairs the user-facing message of a pipeline error with its cause.
func userError(err error) error {
	msg := media.MessageOf(err)
	if cfg != nil && cfg.Debug {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s", msg)
}
