package output

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"review_harvester/internal/app"
)

var summaryHeader = []string{"App", "1★", "2★", "3★", "4★", "5★", "Total", "Stopped", "Archive"}

// WriteSummary prints one row per harvested app.
func WriteSummary(w io.Writer, results []app.HarvestResult) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.Off},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)
	table.Header(summaryHeader)
	if err := table.Bulk(SummaryRows(results)); err != nil {
		return err
	}
	return table.Render()
}

// SummaryRows is the table body, kept separate so it can be checked without
// depending on the renderer's borders.
func SummaryRows(results []app.HarvestResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{r.AppID}
		for stars := 1; stars <= 5; stars++ {
			row = append(row, strconv.Itoa(r.Report.Count(stars)))
		}
		reason := string(r.Reason)
		if reason == "" {
			reason = "-"
		}
		archive := r.ArchivePath
		if archive == "" {
			archive = "-"
		}
		row = append(row, strconv.Itoa(r.Report.Total), reason, archive)
		rows = append(rows, row)
	}
	return rows
}
