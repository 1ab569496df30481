package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/bellwood/slotwatch/internal/appointment"
	"github.com/bellwood/slotwatch/internal/core"
)

// newDryRunCmd verifies the whole pipeline without consuming anything:
// it logs in, runs one extraction and filter pass, and pushes a sample
// alert through every configured channel. The ledger is never written,
// so a later real run still announces everything.
func newDryRunCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Log in, preview one extraction pass and send a test alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := core.LoggerFromContext(ctx)

			app, err := buildApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			candidates, qualifying, err := app.engine.Preview(ctx)
			if err != nil {
				return err
			}
			logger.Info("extraction preview",
				"candidates", len(candidates),
				"qualifying", len(qualifying),
			)
			for _, c := range qualifying {
				logger.Info("would alert", "slot", c.String())
			}

			sample := sampleCandidate(app.prefs)
			if err := app.dispatcher.SendTest(ctx, sample); err != nil {
				return err
			}
			logger.Info("test alert delivered")
			return nil
		},
	}
}

// sampleCandidate fabricates a plausible slot from the user's own
// preferences so the test alert reads like a real one.
func sampleCandidate(prefs appointment.Preferences) appointment.Candidate {
	center := "Vancouver Point Grey"
	for name := range prefs.Centers {
		center = name
		break
	}
	date := prefs.EarliestDate
	if date.IsZero() {
		date = appointment.DateOf(time.Now().AddDate(0, 0, 14))
	}
	tod, _ := appointment.ParseTimeOfDay("9:00 AM")
	return appointment.Candidate{
		TestCenter:  center,
		Date:        date,
		Time:        tod,
		LicenseType: prefs.LicenseType,
	}
}
