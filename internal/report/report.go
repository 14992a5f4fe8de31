// Package report renders segment summaries and dataset insights as
// terminal tables.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dvloznov/customer-segmentation/internal/insights"
	"github.com/dvloznov/customer-segmentation/internal/rfm"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F7B801")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC")).Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))
	noteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// newTable builds a table whose columns from numericFrom on are right aligned.
func newTable(numericFrom int, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= numericFrom:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

// Segments writes the per-segment count and means.
func Segments(w io.Writer, summary []rfm.SegmentSummary) error {
	t := newTable(1, "Segment", "Count", "Recency", "Frequency", "Monetary")
	total := 0
	for _, s := range summary {
		total += s.Count
		t.Row(
			string(s.Segment),
			strconv.Itoa(s.Count),
			strconv.FormatFloat(s.MeanRecency, 'f', 1, 64),
			strconv.FormatFloat(s.MeanFrequency, 'f', 1, 64),
			s.MeanMonetary.StringFixed(2),
		)
	}

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("RFM segments"),
		t.String(),
		noteStyle.Render(fmt.Sprintf("%d customers, means per segment", total)),
	))
	return err
}

// Insights writes the dataset exploration report.
func Insights(w io.Writer, rep insights.Report) error {
	nulls := newTable(1, "Column", "Nulls")
	for _, c := range rep.NullCounts {
		nulls.Row(c.Column, strconv.Itoa(c.Nulls))
	}

	products := newTable(1, "Product", "Quantity")
	for _, p := range rep.TopProducts {
		products.Row(p.Description, strconv.FormatInt(p.Quantity, 10))
	}

	prices := newTable(2, "StockCode", "Product", "Price")
	for _, p := range rep.MostExpensive {
		prices.Row(p.StockCode, p.Description, p.Price.StringFixed(2))
	}

	countries := newTable(1, "Country", "Revenue")
	for _, c := range rep.RevenueByCountry {
		countries.Row(c.Country, c.Revenue.StringFixed(2))
	}

	lines := newTable(1, "Country", "Lines")
	for _, c := range rep.LinesByCountry {
		lines.Row(c.Country, strconv.Itoa(c.Lines))
	}

	overview := fmt.Sprintf(
		"%d rows, %d invoices, %d distinct products\nrevenue %s, %s per invoice (cancellations excluded)",
		rep.Rows, rep.Invoices, rep.DistinctDescriptions,
		rep.Revenue.StringFixed(2), rep.AveragePerInvoice.StringFixed(2),
	)

	_, err := fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Dataset overview"),
		noteStyle.Render(overview),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, nulls.String(), " ", products.String()),
		"",
		titleStyle.Render("Most expensive lines"),
		prices.String(),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, countries.String(), " ", lines.String()),
	))
	return err
}
