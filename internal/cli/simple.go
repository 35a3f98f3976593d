package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coursecal/internal/config"
	"coursecal/internal/convert"
	"coursecal/internal/field"
	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

// NewSimpleCommand returns the csv2ics command: one weekly series per row
// for a fixed number of weeks from --term-start.
func NewSimpleCommand() *cobra.Command {
	var (
		flags     commonFlags
		termStart string
		weeks     int
	)

	cmd := &cobra.Command{
		Use:   "csv2ics",
		Short: "Convert a weekly course CSV into an iCalendar file",
		Long: `csv2ics reads a CSV with columns name,weekday,start,end,location and
writes one weekly recurring event per row, starting on the first matching
weekday on or after --term-start and repeating for --weeks weeks.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.settings(cmd, func(c *config.Config) *string { return &c.SimpleOutfile })
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("weeks") {
				cfg.Weeks = weeks
			}
			if termStart == "" {
				return &model.ConfigError{Missing: []string{"--term-start"}, Msg: "first day of term (YYYY-MM-DD) is required"}
			}
			start, err := field.ParseISODate(termStart)
			if err != nil {
				return &model.ConfigError{Msg: fmt.Sprintf("--term-start %q is not a YYYY-MM-DD date", termStart)}
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			appLog.Debug("simple conversion",
				"csv", flags.csvPath,
				"term_start", start.String(),
				"weeks", cfg.Weeks,
				"timezone", cfg.Timezone,
				"outfile", cfg.SimpleOutfile,
			)

			res, err := convert.SimpleFile(flags.csvPath, convert.SimpleOptions{
				TermStart: start,
				Weeks:     cfg.Weeks,
				Location:  loc,
				ProdID:    cfg.ProdID,
			})
			if err != nil {
				return err
			}
			if err := res.Calendar.WriteFile(cfg.SimpleOutfile); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := writePreview(out, res.Calendar, flags.preview); err != nil {
				return err
			}
			reportSuccess(out, fmt.Sprintf("Wrote %s with %d classes (weekly recurrence for %d weeks)",
				cfg.SimpleOutfile, res.Calendar.Len(), cfg.Weeks))
			return nil
		},
	}

	flags.register(cmd, config.DefaultSimpleOutfile)
	cmd.Flags().StringVar(&termStart, "term-start", "", "First day of term, YYYY-MM-DD (required)")
	cmd.Flags().IntVar(&weeks, "weeks", config.DefaultWeeks, "Number of weekly occurrences per course")
	return cmd
}
