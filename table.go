package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nijaru/yt-transcript/batch"
	"github.com/nijaru/yt-transcript/cache"
)

// reportStyle is the rounded box style with headers left as written.
func reportStyle() table.Style {
	style := table.StyleRounded
	style.Name = "yt-transcript"
	style.Format.Header = text.FormatDefault
	return style
}

func newReportWriter() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(reportStyle())
	return tw
}

// summaryTable renders the batch counters as a single right aligned row.
func summaryTable(s *batch.Summary) string {
	tw := newReportWriter()
	tw.AppendHeader(table.Row{"Total", "Cached", "Fetched", "Failed", "Est. cost"})
	tw.AppendRow(table.Row{
		humanize.Comma(int64(s.Total)),
		humanize.Comma(int64(s.Cached)),
		humanize.Comma(int64(s.Fetched)),
		humanize.Comma(int64(s.Failed)),
		fmt.Sprintf("$%.3f", s.EstimatedCost),
	})

	configs := make([]table.ColumnConfig, 5)
	for i := range configs {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignRight, AlignHeader: text.AlignRight}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

// statsTable renders cache statistics as label/value pairs.
func statsTable(stats cache.Stats) string {
	location := stats.Location
	if location == "" {
		location = "-"
	}

	tw := newReportWriter()
	tw.SetTitle("Transcript cache")
	tw.AppendRows([]table.Row{
		{"Location", location},
		{"Entries", humanize.Comma(int64(stats.Entries))},
		{"Size", humanize.Bytes(uint64(stats.TotalBytes))},
	})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}
