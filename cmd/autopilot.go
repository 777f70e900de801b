package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/autopilot"
)

var autopilotCmd = &cobra.Command{
	Use:   "autopilot <sector> <city>",
	Short: "Run the unattended search-enrich-save pipeline once",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "autopilot")
		if err != nil {
			return err
		}
		defer env.Close()

		req := autopilot.Request{
			Sector:   args[0],
			City:     args[1],
			MinScore: cfg.AutoPilot.DefaultMinScore,
		}
		if cmd.Flags().Changed("min-score") {
			req.MinScore, _ = cmd.Flags().GetFloat64("min-score")
		}
		req.MaxLeads, _ = cmd.Flags().GetInt("max-leads")
		req.RadiusKm, _ = cmd.Flags().GetFloat64("radius")
		req.Campaign, _ = cmd.Flags().GetBool("campaign")
		req.CampaignName, _ = cmd.Flags().GetString("campaign-name")
		asJSON, _ := cmd.Flags().GetBool("json")

		run, err := env.AutoPilot.RunAutoPilot(ctx, req)
		if run.ID != "" {
			if asJSON {
				if jerr := writeJSON(os.Stdout, run); jerr != nil {
					return jerr
				}
			} else {
				formatRun(os.Stdout, run)
			}
		}
		return err
	},
}

func init() {
	autopilotCmd.Flags().Float64("min-score", 0, "minimum score to qualify (default from config)")
	autopilotCmd.Flags().Int("max-leads", 0, "enrich at most this many results (default from config)")
	autopilotCmd.Flags().Float64("radius", 0, "search radius (km) around the city")
	autopilotCmd.Flags().Bool("campaign", false, "start a campaign with the qualified leads")
	autopilotCmd.Flags().String("campaign-name", "", "campaign name (default derived from sector, city and date)")
	autopilotCmd.Flags().Bool("json", false, "print the run as JSON")
	rootCmd.AddCommand(autopilotCmd)
}
