package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// NewCursorCmd создаёт группу команд для курсоров.
func NewCursorCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Inspect and reset cursors",
	}

	cmd.AddCommand(
		newCursorListCmd(clientFn, outputFn),
		newCursorShowCmd(clientFn, outputFn),
		newCursorSetCmd(clientFn, outputFn),
	)

	return cmd
}

func cursorRow(c CursorResponse) []string {
	return []string{c.TLD, c.Type, c.Watermark, strconv.FormatBool(c.Due), strconv.FormatBool(c.Persisted), c.UpdatedAt}
}

var cursorHeaders = []string{"TLD", "TYPE", "WATERMARK", "DUE", "PERSISTED", "UPDATED"}

func newCursorListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cursors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cursors, err := clientFn().ListCursors()
			if err != nil {
				return err
			}

			rows := make([][]string, len(cursors))
			for i, c := range cursors {
				rows[i] = cursorRow(c)
			}

			outputFn().Print(cursorHeaders, rows, cursors)
			return nil
		},
	}
}

func newCursorShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TLD TYPE",
		Short: "Show a cursor (absent cursors show the start of today)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := clientFn().GetCursor(args[0], args[1])
			if err != nil {
				return err
			}

			outputFn().Print(cursorHeaders, [][]string{cursorRow(*c)}, c)
			return nil
		},
	}
}

func newCursorSetCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "set TLD TYPE WATERMARK",
		Short: "Set a cursor, possibly backwards (WATERMARK: RFC3339 or YYYY-MM-DD)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			watermark, err := ParseWatermark(args[2])
			if err != nil {
				return err
			}

			c, err := clientFn().SetCursor(args[0], args[1], watermark)
			if err != nil {
				return err
			}

			out := outputFn()
			out.Print(cursorHeaders, [][]string{cursorRow(*c)}, c)
			out.Success(fmt.Sprintf("Cursor %s/%s set to %s", c.TLD, c.Type, c.Watermark))
			return nil
		},
	}
}

// ParseWatermark принимает RFC3339 или дату YYYY-MM-DD (полночь UTC).
func ParseWatermark(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid watermark %q: want RFC3339 or YYYY-MM-DD", s)
}
