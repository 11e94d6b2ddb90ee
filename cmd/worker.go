/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/fotofeed/apiserver/config"
	"github.com/fotofeed/apiserver/internal/mailer"
	"github.com/fotofeed/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd represents the worker command. It consumes queued outbound
// emails and delivers them over SMTP.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the mail delivery worker",
	Long: `Runs the mail delivery worker. Usage:

	fotofeed worker
`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.LoadConfig()

		backend, err := mq.NewBackend(cmd.Context(), cfg.MQ)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to queue: %v\n", err)
			os.Exit(1)
		}
		queue := mq.New(backend)
		defer func() {
			_ = queue.Close()
		}()

		sender := mailer.NewSMTPSender(cfg.Mail)
		if err := mailer.Consume(cmd.Context(), queue, cfg.MQ.MailChannel, sender); err != nil {
			fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
