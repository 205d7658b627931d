package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"beamdrop/internal/utils"
)

// FileTableItem represents one file in the pre-transfer listing
type FileTableItem struct {
	Index int
	Name  string
	Size  int64
	Type  string
}

// RenderFileTable prints the outgoing batch as a bordered table
func RenderFileTable(items []FileTableItem) {
	fmt.Println(FileTableView(items))
}

func FileTableView(items []FileTableItem) string {
	if len(items) == 0 {
		return MutedStyle.Render("No files")
	}

	headers := []string{"#", "Name", "Size", "Type"}

	var rows [][]string
	for _, item := range items {
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index),
			utils.TruncateString(item.Name, 50),
			utils.FormatSize(item.Size),
			utils.TruncateString(item.Type, 20),
		})
	}

	return styledTable(headers, rows)
}

type TransferSummary struct {
	Status    string
	Files     int
	TotalSize string
	Duration  string
	Speed     string
}

func TransferSummaryView(summary TransferSummary) string {
	headers := []string{"Metric", "Value"}
	rows := [][]string{
		{"Status", summary.Status},
		{"Files", fmt.Sprintf("%d", summary.Files)},
		{"Total Size", summary.TotalSize},
		{"Duration", summary.Duration},
		{"Avg Speed", summary.Speed},
	}

	return styledTable(headers, rows)
}

func RenderTransferSummary(summary TransferSummary) {
	fmt.Println(TransferSummaryView(summary))
}

func styledTable(headers []string, rows [][]string) string {
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

// RenderRoomCode prints the pairing code box the sender reads out to the
// other side.
func RenderRoomCode(roomID string) {
	content := fmt.Sprintf("%s Room Created!\n\n%s Code:  %s\n\n%s",
		IconSuccess,
		IconCode, BoldStyle.Foreground(Primary).Render(roomID),
		MutedStyle.Render("Run `beamdrop receive "+roomID+"` on the other device"),
	)
	fmt.Println(CodeBoxStyle.Render(content))
}
