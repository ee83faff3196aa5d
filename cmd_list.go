package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"voicecapture/internal/models"
)

var listColumns = []struct {
	header string
	key    string
}{
	{"ID", models.IDKey},
	{"Created", models.CreatedAtKey},
	{"Salesperson", "salesperson_name"},
	{"Item", "item_type"},
	{"Metal", "metal_type"},
	{"Intent", "customer_intent"},
	{"Mood", "customer_mood"},
	{"Text", models.OriginalTextKey},
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		limit  int
		id     string
	)
	values := make(map[string]*string, len(models.FilterParams))

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored feedback, newest first",
		Long: `List stored feedback, newest first.

Filters match exactly; pass Empty to match records where the field is unset.

Examples:
  voicecapture list --itemType Chain
  voicecapture list --metalType Empty --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.toolLogger()
			if err != nil {
				return err
			}
			feedback := openFeedback(cmd.Context(), cfg, log)
			defer feedback.Close()
			if !feedback.service.HasStore() {
				return fmt.Errorf("no document store available (store.uri %q)", cfg.Store.URI)
			}

			filter := models.ParseListFilter(func(param string) string {
				if param == models.FeedbackIDParam {
					return id
				}
				if v, ok := values[param]; ok {
					return *v
				}
				return ""
			})
			records := feedback.service.List(cmd.Context(), filter)
			if limit > 0 && len(records) > limit {
				records = records[:limit]
			}
			if asJSON {
				return writeJSON(cmd, records)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderRecords(records, shouldColorize(out)))
			fmt.Fprintf(out, "%d record(s)\n", len(records))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many records")
	cmd.Flags().StringVar(&id, models.FeedbackIDParam, "", "Match a substring of the record id")
	for _, p := range models.FilterParams {
		v := new(string)
		values[p.Param] = v
		cmd.Flags().StringVar(v, p.Param, "", "Filter on "+p.Field)
	}
	return cmd
}

func renderRecords(records []models.Record, colorize bool) string {
	headers := make([]string, len(listColumns))
	for i, c := range listColumns {
		headers[i] = c.header
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(listColumns))
		for i, c := range listColumns {
			row[i] = cellValue(rec[c.key])
		}
		rows = append(rows, row)
	}
	return renderTable(headers, rows, 48, colorize)
}

func cellValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return strings.TrimSpace(t)
	case time.Time:
		return t.Local().Format("2006-01-02 15:04")
	default:
		return fmt.Sprint(t)
	}
}
