package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/putto11262002/board/core"
	"github.com/samber/lo"
)

// renderBoard writes messages as a table, in the order given.
func renderBoard(w io.Writer, messages []core.Message, colours bool) {
	header := fmt.Sprintf("  ====== board: %d messages ======", len(messages))
	if colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	fmt.Fprintln(w, header)

	if len(messages) == 0 {
		fmt.Fprintln(w, "  (no messages)")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Created", "Title", "Entry", "ID"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.AppendBulk(lo.Map(messages, func(m core.Message, _ int) []string {
		return []string{strings.ToUpper(m.CreatedAt), m.Title, m.Entry, m.ID}
	}))
	table.Render()
}
