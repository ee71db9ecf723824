package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewDepositCmd создаёт группу команд для депозитов.
func NewDepositCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Inspect written deposits",
	}

	var tld string
	var limit int

	list := &cobra.Command{
		Use:   "list",
		Short: "List deposits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			deposits, err := clientFn().ListDeposits(tld, limit)
			if err != nil {
				return err
			}

			headers := []string{"TLD", "WATERMARK", "MODE", "REV", "FILE", "DOMAINS", "CREATED"}
			rows := make([][]string, len(deposits))
			for i, d := range deposits {
				rows[i] = []string{d.TLD, d.Watermark, d.Mode, strconv.Itoa(d.Revision), d.FileName, strconv.FormatInt(d.Domains, 10), d.CreatedAt}
			}

			outputFn().Print(headers, rows, deposits)
			return nil
		},
	}
	list.Flags().StringVar(&tld, "tld", "", "Filter by TLD")
	list.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	cmd.AddCommand(list)
	return cmd
}
