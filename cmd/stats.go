package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show funnel statistics over saved leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := stats.New(st).GetStats(ctx)
		if err != nil {
			return eris.Wrap(err, "stats")
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, s)
		}
		formatStats(os.Stdout, s)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "print stats as JSON")
	rootCmd.AddCommand(statsCmd)
}
