package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
)

// renderTable draws rows under headers. Columns listed in numeric are right
// aligned.
func renderTable(headers []string, rows [][]string, numeric ...int) string {
	right := make(map[int]bool, len(numeric))
	for _, col := range numeric {
		right[col] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case right[col]:
				return numberStyle
			default:
				return cellStyle
			}
		}).
		Render()
}

// formatRate keeps small rates readable.
func formatRate(r decimal.Decimal) string {
	if r.Abs().LessThan(decimal.NewFromInt(1)) {
		return r.StringFixed(8)
	}
	return r.StringFixed(2)
}

func formatAmount(a decimal.Decimal) string {
	return a.StringFixed(4)
}

func formatMoney(a decimal.Decimal) string {
	return a.StringFixed(2)
}

// decimalFlag parses a flag value as an exact decimal.
type decimalFlag struct {
	value decimal.Decimal
	set   bool
}

func (d *decimalFlag) String() string {
	if !d.set {
		return ""
	}
	return d.value.String()
}

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	d.value, d.set = v, true
	return nil
}
