package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/mkoziy/habitat/ingest/internal/models"
	"github.com/mkoziy/habitat/ingest/internal/pipeline"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func summaryTable(s *pipeline.Summary) string {
	out := renderTable(
		[]string{"Run", "Succeeded", "Failed", "Skipped"},
		[][]string{{s.RunID, strconv.Itoa(s.Succeeded), strconv.Itoa(s.Failed), strconv.Itoa(s.Skipped)}},
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight},
	)
	if len(s.Failures) == 0 {
		return out
	}
	rows := make([][]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		rows = append(rows, []string{f.Key.String(), f.Error})
	}
	return out + "\n" + renderTable([]string{"Item", "Error"}, rows, nil)
}

func jobsTable(jobs []*models.ZoneJob) string {
	rows := make([][]string, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, []string{
			strconv.FormatInt(j.ID, 10),
			string(j.Status),
			strconv.Itoa(j.RequestedLimit),
			strconv.Itoa(j.ScrapedCount),
			strconv.Itoa(j.FailedCount),
			stamp(&j.CreatedAt),
			stamp(j.FinishedAt),
		})
	}
	return renderTable(
		[]string{"Job", "Status", "Limit", "Captured", "Failed", "Created", "Finished"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	)
}

func zoneTable(z *models.ScrapeZone) string {
	return renderTable(
		[]string{"Zone", "Name", "Total", "Captured", "Remaining", "Refreshed"},
		[][]string{{
			strconv.FormatInt(z.ID, 10),
			z.Name,
			strconv.Itoa(z.TotalProperties),
			strconv.Itoa(z.ScrapedCount),
			strconv.Itoa(z.Remaining()),
			stamp(z.StatsRefreshedAt),
		}},
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight},
	)
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
