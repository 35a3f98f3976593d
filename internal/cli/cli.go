// Package cli builds the cobra commands behind csv2ics and csv2ics-flex.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"coursecal/internal/config"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
)

// commonFlags are shared by both commands.
type commonFlags struct {
	csvPath    string
	configPath string
	tz         string
	outfile    string
	logLevel   string
	preview    int
}

func (f *commonFlags) register(cmd *cobra.Command, defaultOutfile string) {
	fs := cmd.Flags()
	fs.StringVar(&f.csvPath, "csv", "", "Path to the schedule CSV (required)")
	fs.StringVar(&f.configPath, "config", "", "Optional YAML config file")
	fs.StringVar(&f.tz, "tz", config.DefaultTimezone, "IANA timezone for event times")
	fs.StringVar(&f.outfile, "outfile", defaultOutfile, "Output .ics path")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	fs.IntVar(&f.preview, "preview", 0, "Print the first N occurrences of each event")
}

// settings loads the config file and lays explicitly set flags over it.
// outfile points at the field the caller's command writes to.
func (f *commonFlags) settings(cmd *cobra.Command, outfile func(*config.Config) *string) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("tz") {
		cfg.Timezone = f.tz
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("outfile") {
		*outfile(cfg) = f.outfile
	}

	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, &model.ConfigError{Msg: err.Error()}
	}
	appLog.SetLevel(level)

	if f.csvPath == "" {
		return nil, &model.ConfigError{Missing: []string{"--csv"}, Msg: "path to the CSV file is required"}
	}
	if f.preview < 0 {
		return nil, &model.ConfigError{Msg: fmt.Sprintf("--preview must not be negative, got %d", f.preview)}
	}
	return cfg, nil
}

// writePreview prints up to n occurrences per event.
func writePreview(w io.Writer, cal *ics.Calendar, n int) error {
	if n <= 0 || cal.Len() == 0 {
		return nil
	}
	// Expand with the normal cap; a short preview is not a truncation.
	res, err := ics.ExpandOccurrences(cal.Events(), 0)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, labelStyle.Render("Preview:"))
	shown := make(map[string]int, cal.Len())
	for _, o := range res.Occurrences {
		if shown[o.UID] == n {
			continue
		}
		shown[o.UID]++
		line := fmt.Sprintf("  %s %s-%s  %s",
			o.Start.Format("2006-01-02 Mon"),
			o.Start.Format("15:04"),
			o.End.Format("15:04"),
			o.Summary,
		)
		if o.Location != "" {
			line += " @ " + o.Location
		}
		if o.Extra {
			line += " (extra)"
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func reportSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, successStyle.Render(msg))
}

// Execute runs cmd and exits non-zero on failure, printing the error once.
func Execute(cmd *cobra.Command) {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, failStyle.Render(describe(err)))
		os.Exit(1)
	}
}

// describe prefixes an error with its category.
func describe(err error) string {
	var ce *model.ConfigError
	var fe *model.FormatError
	switch {
	case errors.As(err, &ce):
		return "config error: " + ce.Error()
	case errors.As(err, &fe):
		return "format error: " + fe.Error()
	default:
		return "error: " + err.Error()
	}
}
