package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"signal-trader/internal/store"
)

func newStatusCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent trading activity from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			return showStatus(cmd, limit)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum closed positions to show")
	return cmd
}

func showStatus(cmd *cobra.Command, limit int) error {
	output := NewOutput(cmd)

	journal, err := store.NewJournal(journalPath())
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer journal.Close()

	closed, err := journal.ClosedPositions(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("reading closed positions: %w", err)
	}

	if output.IsJSON() {
		return output.JSON(closed)
	}

	if len(closed) == 0 {
		output.Dim("No closed positions recorded.")
		return nil
	}

	output.Bold("Closed Positions")
	table := NewTable(output, "CLOSED AT", "SYMBOL", "SIDE", "QTY", "ENTRY", "REASON")
	for _, c := range closed {
		table.AddRow(
			c.ClosedAt.Format("2006-01-02 15:04:05"),
			c.Symbol,
			string(c.Side),
			fmt.Sprintf("%d", c.Quantity),
			fmt.Sprintf("%.2f", c.EntryPrice),
			c.Reason,
		)
	}
	table.Render()
	return nil
}
