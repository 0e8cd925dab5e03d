package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/Arielbs/claude-usage-monitor/internal/anthropic"
	"github.com/Arielbs/claude-usage-monitor/internal/app"
)

// ANSI color codes for terminal output.
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorDim    = "\033[2m"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "query a running agent and print the cached usage snapshot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server--host",
				Usage: "control server host",
				Value: app.DefaultConfigServerHost,
			},
			&cli.IntFlag{
				Name:  "server--port",
				Usage: "control server port",
				Value: int(app.DefaultConfigServerPort),
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "force a fetch instead of reading the cached snapshot",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print the raw JSON snapshot",
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "disable colored output",
			},
		},
		Action: statusAction,
	}
}

// statusReport is the combined view printed by the status command.
type statusReport struct {
	Usage     *anthropic.UsageSnapshot  `json:"usage,omitempty"`
	Account   *anthropic.AccountProfile `json:"account,omitempty"`
	LastError string                    `json:"last_error,omitempty"`
}

func statusAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"), cmd, os.Environ)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	base := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	client := &http.Client{Timeout: 5 * time.Second}

	if cmd.Bool("refresh") {
		if err := postRefresh(ctx, client, base+"/v1/refresh"); err != nil {
			return fmt.Errorf("is the agent running at %s? %w", base, err)
		}
	}

	var report statusReport
	if err := fetchJSON(ctx, client, base+"/v1/usage", &report.Usage); err != nil {
		return fmt.Errorf("is the agent running at %s? %w", base, err)
	}
	if err := fetchJSON(ctx, client, base+"/v1/account", &report.Account); err != nil {
		return err
	}
	var lastErr struct {
		Error string `json:"error"`
	}
	if err := fetchJSON(ctx, client, base+"/v1/last-error", &lastErr); err != nil {
		return err
	}
	report.LastError = lastErr.Error

	if cmd.Bool("json") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	color := !cmd.Bool("plain") && term.IsTerminal(int(os.Stdout.Fd()))
	printReport(os.Stdout, report, color)
	return nil
}

// postRefresh runs one on-demand fetch cycle on the agent. A 502 is not
// fatal here: the agent records the error and the report prints it.
func postRefresh(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadGateway:
		return nil
	default:
		return fmt.Errorf("POST %s: unexpected status %d", url, resp.StatusCode)
	}
}

// fetchJSON decodes a 200 response into out and treats 204 as "leave out
// untouched".
func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(out)
	default:
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
}

func printReport(w io.Writer, report statusReport, color bool) {
	paint := func(code, s string) string {
		if !color {
			return s
		}
		return code + s + colorReset
	}

	if report.Account != nil {
		name := report.Account.DisplayName
		if name == "" {
			name = report.Account.Email
		}
		fmt.Fprintf(w, "Account:      %s", name)
		if report.Account.Email != "" && name != report.Account.Email {
			fmt.Fprintf(w, " %s", paint(colorDim, "<"+report.Account.Email+">"))
		}
		fmt.Fprintln(w)
		if report.Account.Subscription != "" {
			fmt.Fprintf(w, "Subscription: %s\n", report.Account.Subscription)
		}
	}

	if report.Usage == nil {
		fmt.Fprintln(w, "Usage:        no snapshot yet")
	} else {
		printWindow(w, "5-hour", report.Usage.FiveHour, paint)
		printWindow(w, "7-day", report.Usage.SevenDay, paint)
		printWindow(w, "7-day Sonnet", report.Usage.SevenDaySonnet, paint)
		printWindow(w, "7-day Opus", report.Usage.SevenDayOpus, paint)
	}

	if report.LastError != "" {
		fmt.Fprintf(w, "Last error:   %s\n", paint(colorRed, report.LastError))
	}
}

func printWindow(w io.Writer, label string, window *anthropic.UsageWindow, paint func(code, s string) string) {
	if window == nil || window.Utilization == nil {
		return
	}

	utilization := *window.Utilization
	code := colorGreen
	switch {
	case utilization >= 90:
		code = colorRed
	case utilization >= 70:
		code = colorYellow
	}

	fmt.Fprintf(w, "%-13s %s", label+":", paint(code, fmt.Sprintf("%5.1f%%", utilization)))
	if window.ResetsAt != nil && *window.ResetsAt != "" {
		fmt.Fprintf(w, " %s", paint(colorDim, "resets "+*window.ResetsAt))
	}
	fmt.Fprintln(w)
}
