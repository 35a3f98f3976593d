package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coursecal/internal/config"
	"coursecal/internal/convert"
	appLog "coursecal/internal/log"
)

// NewFlexibleCommand returns the csv2ics-flex command, which accepts
// single-date rows and recurring rows in the same file.
func NewFlexibleCommand() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "csv2ics-flex",
		Short: "Convert a mixed single/recurring schedule CSV into an iCalendar file",
		Long: `csv2ics-flex reads a CSV with at least name,start,end columns.

A row with a date column is a one-off event. A row with weekday and
start_date is a weekly series; interval, count, end_date, exceptions and
rdates refine it. Without count or end_date a series stops after the
configured fallback count.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.settings(cmd, func(c *config.Config) *string { return &c.FlexibleOutfile })
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}

			appLog.Debug("flexible conversion",
				"csv", flags.csvPath,
				"timezone", cfg.Timezone,
				"fallback_count", cfg.FallbackCount,
				"outfile", cfg.FlexibleOutfile,
			)

			res, err := convert.FlexibleFile(flags.csvPath, convert.FlexibleOptions{
				Location:          loc,
				ProdID:            cfg.FlexibleProdID,
				FallbackCount:     cfg.FallbackCount,
				ExDateAtStartTime: cfg.ExDateAtStartTime,
			})
			if err != nil {
				return err
			}
			if err := res.Calendar.WriteFile(cfg.FlexibleOutfile); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := writePreview(out, res.Calendar, flags.preview); err != nil {
				return err
			}
			msg := fmt.Sprintf("Wrote %s with %d events (%d single, %d recurring)",
				cfg.FlexibleOutfile, res.Calendar.Len(), res.Single, res.Recurring)
			if res.Warnings > 0 {
				msg += fmt.Sprintf(", %d values dropped", res.Warnings)
			}
			reportSuccess(out, msg)
			return nil
		},
	}

	flags.register(cmd, config.DefaultFlexibleOutfile)
	return cmd
}
