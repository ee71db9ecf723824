package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewLockCmd создаёт группу команд для блокировок.
func NewLockCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect locks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List lock records, including expired ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			locks, err := clientFn().ListLocks()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "SCOPE", "ACQUIRED", "EXPIRES", "EXPIRED"}
			rows := make([][]string, len(locks))
			for i, l := range locks {
				rows[i] = []string{l.Name, l.Scope, l.AcquiredAt, l.ExpiresAt, strconv.FormatBool(l.Expired)}
			}

			outputFn().Print(headers, rows, locks)
			return nil
		},
	})

	return cmd
}
