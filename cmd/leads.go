package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

const exportPageSize = 500

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage saved leads",
}

// -- leads status --

var leadsStatusCmd = &cobra.Command{
	Use:   "status <lead-id> <new|contacted|converted|rejected>",
	Short: "Move a lead through the funnel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		svc := leads.NewService(st)
		if err := svc.UpdateStatus(ctx, args[0], model.LeadStatus(args[1])); err != nil {
			return err
		}
		zap.L().Info("lead status updated", zap.String("id", args[0]), zap.String("status", args[1]))
		return nil
	},
}

// -- leads export --

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export saved leads as CSV or XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		formatFlag, _ := cmd.Flags().GetString("format")
		format, err := export.ParseFormat(formatFlag)
		if err != nil {
			return err
		}

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		sector, _ := cmd.Flags().GetString("sector")
		city, _ := cmd.Flags().GetString("city")
		filter := leads.LeadFilter{Status: model.LeadStatus(status), Sector: sector, City: city}

		all, err := listAll(ctx, leads.NewService(st), filter)
		if err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("out")
		if path == "" {
			path = format.Filename(time.Now())
		}
		var out io.Writer = os.Stdout
		if path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return eris.Wrap(err, "leads export: create file")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if err := export.Write(out, format, all); err != nil {
			return err
		}
		if path != "-" {
			fmt.Fprintf(os.Stderr, "Exported %d leads to %s\n", len(all), path)
		}
		return nil
	},
}

// leadLister lists one page of leads.
type leadLister interface {
	List(ctx context.Context, f leads.LeadFilter) ([]model.LeadRecord, error)
}

// listAll pages through every lead matching f.
func listAll(ctx context.Context, l leadLister, f leads.LeadFilter) ([]model.LeadRecord, error) {
	var all []model.LeadRecord
	f.Limit, f.Offset = exportPageSize, 0
	for {
		page, err := l.List(ctx, f)
		if err != nil {
			return nil, eris.Wrap(err, "leads export: list")
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			return all, nil
		}
		f.Offset += len(page)
	}
}

func init() {
	leadsExportCmd.Flags().String("format", "csv", "export format (csv, xlsx)")
	leadsExportCmd.Flags().String("out", "", "output path, - for stdout (default leads-<timestamp>.<ext>)")
	leadsExportCmd.Flags().String("status", "", "only leads with this status")
	leadsExportCmd.Flags().String("sector", "", "only leads from this sector")
	leadsExportCmd.Flags().String("city", "", "only leads from this city")

	leadsCmd.AddCommand(leadsStatusCmd)
	leadsCmd.AddCommand(leadsExportCmd)
	rootCmd.AddCommand(leadsCmd)
}
