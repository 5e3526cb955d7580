package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	// Headers returns the column headers for the table.
	Headers() []string
	// Rows returns the data rows for the table.
	Rows() [][]string
}

// tableStyle tunes the borderless rendering scpctl uses.
type tableStyle struct {
	columnSeparator string
	uppercaseHeader bool
}

// PrintTable writes data as a headed, borderless table.
func PrintTable(w io.Writer, data TableRenderer) error {
	return render(w, data.Headers(), data.Rows(), tableStyle{
		uppercaseHeader: true,
	})
}

// SimpleTable prints a key-value listing, one pair per line.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	rows := make([][]string, 0, len(pairs))
	for _, pair := range pairs {
		rows = append(rows, []string{pair[0], pair[1]})
	}
	return render(w, nil, rows, tableStyle{
		columnSeparator: ":",
	})
}

// render drives tablewriter with the given style. Output is plain
// left-aligned text: no borders, no separator lines, two-space padding.
func render(w io.Writer, headers []string, rows [][]string, style tableStyle) error {
	table := tablewriter.NewWriter(w)

	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetRowSeparator("")
	table.SetCenterSeparator("")
	table.SetColumnSeparator(style.columnSeparator)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(style.uppercaseHeader)

	if len(headers) > 0 {
		table.SetHeader(headers)
	}
	table.AppendBulk(rows)
	table.Render()
	return nil
}
