package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/dukaan/internal/server"
	"github.com/shashiranjanraj/dukaan/pkg/queue"
)

var workerCount int

func init() {
	queueWorkCmd.Flags().IntVarP(&workerCount, "workers", "w", 4, "number of concurrent workers")
}

// dukaan queue:work — process queued jobs (seller cleanup cascade) without
// serving HTTP.
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Process queued jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := server.Boot(ctx)
		if err != nil {
			return err
		}
		defer app.DB.Close()

		fmt.Printf("Processing jobs with %d workers. Ctrl+C to stop.\n", workerCount)
		queue.StartWorkers(ctx, workerCount)

		<-ctx.Done()
		fmt.Println("\nStopped.")
		return nil
	},
}
