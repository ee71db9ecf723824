package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для задач каталога.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "List and run escrow tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskRunCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalog tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := clientFn().ListJobs()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "CURSOR", "MODE", "INTERVAL", "TIMEOUT", "CRON", "TLDS"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.Name, j.CursorType, j.Mode, j.Interval, j.Timeout, j.Cron, strings.Join(j.TLDs, ",")}
			}

			outputFn().Print(headers, rows, jobs)
			return nil
		},
	}
}

func newTaskRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var tld string

	cmd := &cobra.Command{
		Use:   "run TASK --tld TLD",
		Short: "Run a task for one TLD now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			run, err := clientFn().RunTask(args[0], tld)
			if apiErr, busy := IsLockBusy(err); busy {
				out.Error(fmt.Sprintf("%s for %s is already running, retry after %s", args[0], tld, apiErr.RetryAfter))
				return err
			}
			if err != nil {
				return err
			}

			headers := []string{"TASK", "TLD", "OUTCOME", "WATERMARK", "NEXT", "DURATION_S"}
			row := []string{run.Task, run.TLD, run.Outcome, run.Watermark, run.NextWatermark, strconv.FormatFloat(run.DurationSeconds, 'f', 2, 64)}
			out.Print(headers, [][]string{row}, run)
			return nil
		},
	}

	cmd.Flags().StringVar(&tld, "tld", "", "TLD to run the task for (required)")
	_ = cmd.MarkFlagRequired("tld")

	return cmd
}
