package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/warren/internal/printer"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor artifact activity in real time",
	Long: `Subscribe to the instance's artifact event channel and print every
artifact creation and status change as it happens. Press Ctrl-C to stop.

Delivery is at-most-once (Redis Pub/Sub): events published while the watcher
is down are not replayed. Use 'warren events' for the durable audit trail.

Examples:
  warren watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, client, err := loadClient()
	if err != nil {
		return err
	}
	defer client.Close()

	sub, err := client.SubscribeArtifactEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	printer.Info("Watching artifact events (Ctrl-C to stop)...\n\n")

	for {
		select {
		case <-sigCh:
			printer.Info("\nStopped.\n")
			return nil

		case artifact, ok := <-sub.Events():
			if !ok {
				return nil
			}
			hash := artifact.ContentHash
			if hash == "" {
				hash = "-"
			} else if len(hash) > 10 {
				hash = hash[:10]
			}
			printer.Info("%s  %-18s v%-3d %-18s hash=%s run=%s\n",
				artifact.ProducedBy, artifact.Kind, artifact.Version,
				artifact.Status, hash, artifact.RequestID)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			printer.Warning("event error: %v\n", err)
		}
	}
}
