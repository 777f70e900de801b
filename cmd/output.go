package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/sells-group/leadgen/internal/model"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatCandidates writes a tabular list of search results to w.
func formatCandidates(out io.Writer, cands []model.Candidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PLACE_ID\tNAME\tRATING\tREVIEWS\tWEBSITE\tPHONE")
	_, _ = fmt.Fprintln(w, "--------\t----\t------\t-------\t-------\t-----")
	for _, c := range cands {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\t%s\t%s\n",
			truncateID(c.PlaceID),
			truncate(c.Name, 30),
			c.Rating,
			c.ReviewCount,
			truncate(c.Website, 30),
			c.Phone,
		)
	}
	_ = w.Flush()
}

// formatRun writes the summary of one auto-pilot run to w.
func formatRun(out io.Writer, run model.AutoPilotRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", run.ID)
	_, _ = fmt.Fprintf(w, "Target:\t%s / %s\n", run.Sector, run.City)
	_, _ = fmt.Fprintf(w, "Outcome:\t%s\n", run.Outcome)
	_, _ = fmt.Fprintf(w, "Found:\t%d\n", run.LeadsFound)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d (failed %d)\n", run.LeadsEnriched, run.LeadsFailed)
	_, _ = fmt.Fprintf(w, "Saved:\t%d (skipped %d)\n", run.LeadsSaved, run.LeadsSkipped)
	if run.CampaignID != "" {
		_, _ = fmt.Fprintf(w, "Campaign:\t%s (%d leads)\n", run.CampaignID, run.LeadsCampaigned)
	}
	_, _ = fmt.Fprintf(w, "Est. cost:\t$%.4f\n", run.EstimatedCost)
	if run.Error != "" {
		_, _ = fmt.Fprintf(w, "Error:\t%s\n", run.Error)
	}
	_ = w.Flush()

	if len(run.HighValueLeads) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSCORE\tGRADE\tEMAIL")
	for _, l := range run.HighValueLeads {
		_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\t%s\n", truncate(l.Name, 30), l.Score, l.Grade, l.Email)
	}
	_ = w.Flush()
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.AutoPilotRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSECTOR\tCITY\tOUTCOME\tFOUND\tSAVED\tSTARTED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t-------\t-----\t-----\t-------")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			truncateID(r.ID),
			truncate(r.Sector, 20),
			truncate(r.City, 20),
			r.Outcome,
			r.LeadsFound,
			r.LeadsSaved,
			r.StartedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatStats writes the funnel aggregates to w.
func formatStats(out io.Writer, s model.LeadStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total found:\t%d\n", s.TotalFound)
	_, _ = fmt.Fprintf(w, "Saved to CRM:\t%d\n", s.SavedToCRM)
	_, _ = fmt.Fprintf(w, "Campaign sends:\t%d\n", s.EmailCampaignsSent)
	_, _ = fmt.Fprintf(w, "Converted:\t%d\n", s.ConvertedToCustomer)
	_, _ = fmt.Fprintf(w, "Rejected:\t%d\n", s.Rejected)
	_, _ = fmt.Fprintf(w, "Pending:\t%d\n", s.Pending)
	_, _ = fmt.Fprintf(w, "Conversion rate:\t%.2f%%\n", s.ConversionRate)
	_ = w.Flush()

	formatBreakdown(out, "INDUSTRY", s.ByIndustry)
	formatBreakdown(out, "CITY", s.ByCity)

	if len(s.RecentLeads) > 0 {
		_, _ = fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "RECENT\tINDUSTRY\tSCORE\tSTATUS\tCREATED")
		for _, l := range s.RecentLeads {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.1f\t%s\t%s\n",
				truncate(l.Company, 30), l.Industry, l.Score, l.Status,
				l.CreatedAt.Format("2006-01-02 15:04"),
			)
		}
		_ = w.Flush()
	}
}

func formatBreakdown(out io.Writer, label string, m map[string]model.Breakdown) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	_, _ = fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tTOTAL\tCONVERTED\tREJECTED\n", label)
	for _, k := range keys {
		b := m[k]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", k, b.Total, b.Converted, b.Rejected)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of an id for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
