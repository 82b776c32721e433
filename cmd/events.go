/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"

	"github.com/resourcehub/apiserver/config"
	"github.com/resourcehub/apiserver/internal/events"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// eventsCmd represents the events command.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Change-event utilities",
}

var eventsListenCmd = &cobra.Command{
	Use:   "listen [channel]",
	Short: "Subscribe to a channel and log every event",
	Long: `Subscribes to a change-event channel on the configured broker and
logs each message. Usage:

	apiserver events listen resource-events
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		channel := args[0]

		logger, err := zap.NewProduction()
		if err != nil {
			return err
		}
		defer logger.Sync()

		broker, err := events.NewBroker(cmd.Context(), cfg.Events)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("no events driver configured")
		}
		defer broker.Close()

		logger.Info("listening", zap.String("channel", channel))
		return broker.Subscribe(cmd.Context(), channel, func(ctx context.Context, msg events.Message) error {
			logger.Info("event",
				zap.String("channel", channel),
				zap.String("id", msg.ID),
				zap.ByteString("data", msg.Data),
				zap.Any("attributes", msg.Attributes))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListenCmd)
}
