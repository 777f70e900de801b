package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadgen/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search <sector> <city>",
	Short: "Search the places directory for businesses",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("search"); err != nil {
			return err
		}

		radius, _ := cmd.Flags().GetFloat64("radius")
		minRating, _ := cmd.Flags().GetFloat64("min-rating")
		asJSON, _ := cmd.Flags().GetBool("json")

		cands, err := initSearch().SearchWithin(ctx, args[0], args[1], radius)
		if err != nil {
			return eris.Wrap(err, "search")
		}
		if minRating > 0 {
			cands = search.FilterByRating(cands, minRating)
		}

		if asJSON {
			return writeJSON(os.Stdout, cands)
		}
		if len(cands) == 0 {
			fmt.Fprintln(os.Stderr, "No businesses found.")
			return nil
		}
		formatCandidates(os.Stdout, cands)
		return nil
	},
}

func init() {
	searchCmd.Flags().Float64("radius", 0, "bias results to this radius (km) around the city")
	searchCmd.Flags().Float64("min-rating", 0, "drop results rated below this")
	searchCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(searchCmd)
}
