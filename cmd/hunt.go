package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/pipeline"
)

// huntDeps are the services the guided flow drives.
type huntDeps struct {
	Search    autopilot.Searcher
	Enrich    autopilot.Enricher
	Leads     autopilot.LeadSaver
	Campaigns autopilot.Campaigner
}

type huntOptions struct {
	Sector   string
	City     string
	RadiusKm float64
	Pick     []string
	Top      int
	MinScore float64
	Save     bool
	Campaign string
}

// huntReport summarizes one pass through the wizard.
type huntReport struct {
	Found     int
	Selected  int
	Enriched  int
	Failed    int
	Qualified int
	Unscored  int
	Save      leads.SaveResult
	Campaign  *campaign.Result
	HighValue []model.HighValueLead
}

// runHunt walks a pipeline.Session from search through selection and action
// to stats. It searches, selects picks (or the first top results) and
// enriches what is pending. Enriched leads below MinScore are deselected.
// The rest of the selection can then be saved, put in a campaign, or both.
func runHunt(ctx context.Context, deps huntDeps, opts huntOptions, progress io.Writer) (*pipeline.Session, huntReport, error) {
	var rep huntReport
	sess := pipeline.NewSession()

	cands, err := deps.Search.SearchWithin(ctx, opts.Sector, opts.City, opts.RadiusKm)
	if err != nil {
		return sess, rep, eris.Wrap(err, "hunt: search")
	}
	if err := sess.LoadResults(opts.Sector, opts.City, cands); err != nil {
		return sess, rep, err
	}
	rep.Found = len(sess.Candidates())

	switch {
	case len(opts.Pick) > 0:
		if _, err := sess.Select(opts.Pick...); err != nil {
			return sess, rep, err
		}
	case opts.Top > 0:
		ids := make([]string, 0, opts.Top)
		for i, c := range sess.Candidates() {
			if i == opts.Top {
				break
			}
			ids = append(ids, c.PlaceID)
		}
		if _, err := sess.Select(ids...); err != nil {
			return sess, rep, err
		}
	default:
		if _, err := sess.SelectAll(); err != nil {
			return sess, rep, err
		}
	}
	rep.Selected = len(sess.Selected())

	if err := sess.Transition(pipeline.StepAction); err != nil {
		return sess, rep, err
	}

	res, err := deps.Enrich.EnrichBatch(ctx, sess.Pending(), sess.Results(), enrich.BatchOptions{
		OnProgress: func(p enrich.Progress) {
			_, _ = fmt.Fprintf(progress, "\renriching %d/%d (%.0f%%)", p.Processed, p.Total, p.Percent)
		},
	})
	_, _ = fmt.Fprintln(progress)
	if applyErr := sess.ApplyOutcomes(res.Outcomes); applyErr != nil {
		return sess, rep, applyErr
	}
	rep.Enriched, rep.Failed = res.Enriched, res.Failed
	if err != nil {
		return sess, rep, eris.Wrap(err, "hunt: enrich")
	}

	// Only enriched leads are held to MinScore. Leads whose enrichment
	// failed stay selected and are saved at the default score.
	var keep []model.CandidateWithScore
	var drop []string
	for _, c := range sess.SelectedWithScores() {
		if score, ok := c.Score(); ok && score < opts.MinScore {
			drop = append(drop, c.PlaceID)
			continue
		}
		keep = append(keep, c)
	}
	if len(drop) > 0 {
		if err := sess.Deselect(drop...); err != nil {
			return sess, rep, err
		}
	}
	qualified := autopilot.Qualify(keep, opts.MinScore)
	rep.Qualified = len(qualified)
	rep.Unscored = len(keep) - len(qualified)
	rep.HighValue = autopilot.HighValue(qualified)

	if opts.Save && len(keep) > 0 {
		rep.Save, err = deps.Leads.SaveToCRM(ctx, keep)
		if err != nil {
			return sess, rep, eris.Wrap(err, "hunt: save")
		}
		ids := make([]string, len(keep))
		for i, c := range keep {
			ids[i] = c.PlaceID
		}
		if err := sess.MarkSaved(ids...); err != nil {
			return sess, rep, err
		}
	}

	if opts.Campaign != "" && len(keep) > 0 {
		if deps.Campaigns == nil || !deps.Campaigns.Enabled() {
			zap.L().Warn("campaign requested but no dispatcher is configured", zap.String("stage", "hunt"))
		} else {
			cr, err := deps.Campaigns.CreateCampaign(ctx, opts.Campaign, keep)
			if err != nil {
				return sess, rep, eris.Wrap(err, "hunt: campaign")
			}
			rep.Campaign = &cr
		}
	}

	if err := sess.Transition(pipeline.StepStats); err != nil {
		return sess, rep, err
	}
	return sess, rep, nil
}

// formatHunt writes the qualified leads and the outcome counts to w.
func formatHunt(out io.Writer, rep huntReport) {
	_, _ = fmt.Fprintf(out, "Found %d, selected %d, enriched %d (failed %d), qualified %d\n",
		rep.Found, rep.Selected, rep.Enriched, rep.Failed, rep.Qualified)
	if rep.Unscored > 0 {
		_, _ = fmt.Fprintf(out, "Kept %d unscored leads at the default score\n", rep.Unscored)
	}
	if rep.Save.Created > 0 || rep.Save.Skipped > 0 {
		_, _ = fmt.Fprintf(out, "Saved %d new leads, %d already known\n", rep.Save.Created, rep.Save.Skipped)
	}
	if rep.Campaign != nil {
		_, _ = fmt.Fprintf(out, "Campaign %s: %d assigned, %d without email\n",
			rep.Campaign.CampaignID, rep.Campaign.Assigned, rep.Campaign.SkippedNoEmail)
	}
	if len(rep.HighValue) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSCORE\tGRADE\tEMAIL")
	for _, l := range rep.HighValue {
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\n", truncate(l.Name, 30), l.Score, l.Grade, l.Email)
	}
	_ = w.Flush()
}

var huntCmd = &cobra.Command{
	Use:   "hunt <sector> <city>",
	Short: "Search, select, enrich and save leads step by step",
	Long:  "Runs the operator flow once: search, select (all, --top N or --pick ids), enrich the selection, drop enriched leads scoring below --min-score, then save the rest (--save), start a campaign (--campaign), or both. Leads whose enrichment failed are kept at the default score.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "autopilot")
		if err != nil {
			return err
		}
		defer env.Close()

		radius, _ := cmd.Flags().GetFloat64("radius")
		pick, _ := cmd.Flags().GetString("pick")
		top, _ := cmd.Flags().GetInt("top")
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		save, _ := cmd.Flags().GetBool("save")
		campaignName, _ := cmd.Flags().GetString("campaign")

		opts := huntOptions{
			Sector:   args[0],
			City:     args[1],
			RadiusKm: radius,
			Top:      top,
			MinScore: minScore,
			Save:     save,
			Campaign: campaignName,
		}
		for _, id := range strings.Split(pick, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.Pick = append(opts.Pick, id)
			}
		}

		_, rep, err := runHunt(ctx, huntDeps{
			Search:    env.Search,
			Enrich:    env.Worker,
			Leads:     env.Leads,
			Campaigns: env.Campaigns,
		}, opts, os.Stderr)
		formatHunt(os.Stdout, rep)
		return err
	},
}

func init() {
	huntCmd.Flags().Float64("radius", 0, "search radius (km) around the city")
	huntCmd.Flags().String("pick", "", "comma-separated place ids to select")
	huntCmd.Flags().Int("top", 0, "select only the first N results (0 = all)")
	huntCmd.Flags().Float64("min-score", 70, "minimum score to keep a lead")
	huntCmd.Flags().Bool("save", false, "save qualified leads to the CRM")
	huntCmd.Flags().String("campaign", "", "start a campaign with this name after saving")
	rootCmd.AddCommand(huntCmd)
}
