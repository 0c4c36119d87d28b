package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/postboard/apiserver/config"
	"github.com/postboard/apiserver/internal/logging"
	"github.com/postboard/apiserver/internal/mq"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var channelAliases = map[string]string{
	"users":         mq.ChannelUsers,
	"posts":         mq.ChannelPosts,
	mq.ChannelUsers: mq.ChannelUsers,
	mq.ChannelPosts: mq.ChannelPosts,
}

// eventsCmd groups domain event commands.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect user and post lifecycle events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail CHANNEL",
	Short: "Subscribe to users or posts events and log each one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		channel, ok := channelAliases[args[0]]
		if !ok {
			return fmt.Errorf("unknown channel %q (want users or posts)", args[0])
		}

		cfg := config.LoadConfig()
		log := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if broker == nil {
			return errors.New("messaging is disabled; set MQ_BACKEND to rabbitmq or pubsub")
		}
		defer broker.Close()

		log.WithField("channel", channel).Info("tailing events")
		err = broker.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
			evt, err := mq.DecodeEvent(msg)
			if err != nil {
				log.WithError(err).WithField("message_id", msg.ID).Warn("skipping undecodable message")
				return nil
			}
			log.WithFields(logrus.Fields{
				"message_id":  msg.ID,
				"type":        evt.Type,
				"resource_id": evt.ResourceID,
				"actor_id":    evt.ActorID,
				"occurred_at": evt.OccurredAt,
			}).Info("event")
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
