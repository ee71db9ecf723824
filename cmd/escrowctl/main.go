// escrowctl — инструмент командной строки для escrow API.
//
// Использование:
//
//	escrowctl [--api-url URL] [--json] [--timeout D] <command> <subcommand> [flags]
//
// Команды:
//
//	task     Список задач и ручной запуск
//	cursor   Просмотр и сдвиг курсоров
//	lock     Живые блокировки
//	deposit  Записанные депозиты
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Escrow/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool
	var timeout time.Duration

	rootCmd := &cobra.Command{
		Use:           "escrowctl",
		Short:         "escrowctl — registry escrow task control",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("ESCROW_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 3*time.Hour, "Request timeout (task run waits for the task)")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, timeout) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewCursorCmd(clientFn, outputFn),
		cli.NewLockCmd(clientFn, outputFn),
		cli.NewDepositCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
