package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agile-athletes/lrps/internal/attention"
	"github.com/agile-athletes/lrps/internal/queue/pubsub"
	"github.com/agile-athletes/lrps/internal/runtime"
)

func listenCMD(a *app) *cobra.Command {
	var session string
	var debug, pretty bool
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Print attention trees published for a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := a.cfg.Messaging.Redis
			rdb := redis.NewClient(&redis.Options{Addr: rc.Addr(), Password: rc.Password, DB: rc.DB, DialTimeout: rc.Timeout})
			defer rdb.Close()
			reg, err := pubsub.DefaultRegistry()
			if err != nil {
				return err
			}
			sub := pubsub.NewSubscriber(rdb, reg, a.logger.Named("pubsub"))
			topic := pubsub.TopicName(session, debug || a.cfg.Messaging.Debug)

			ctx, cancel := runtime.SignalContext(cmd.Context(), "listen", a.logger)
			defer cancel()
			err = sub.Listen(ctx, printRendered(cmd.OutOrStdout(), pretty, a.logger), topic)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	listen.Flags().StringVar(&session, "session", "", "session id whose topic to follow")
	listen.Flags().BoolVar(&debug, "debug", false, "follow the shared debug topic")
	listen.Flags().BoolVar(&pretty, "pretty", false, "render Markdown for the terminal")
	return listen
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5A56E0"))

// printRendered rebuilds each received tree, heaviest attentions first
// among siblings, and writes its Markdown to w.
func printRendered(w io.Writer, pretty bool, logger *zap.Logger) pubsub.Handler {
	return func(_ context.Context, topic string, env pubsub.Envelope) error {
		var payload pubsub.RenderedPayload
		if err := env.Decode(&payload); err != nil {
			return err
		}
		conv := attention.NewConverterFromItems(attention.Sorted(payload.Attentions), attention.WithLogger(logger))
		md := conv.ToMarkdown()
		if md == "" {
			md = payload.Markdown
		}
		if pretty {
			out, err := prettyMarkdown(md)
			if err != nil {
				return err
			}
			md = out
		}
		header := fmt.Sprintf("--- %s %s", topic, env.OccurredAt.Format("15:04:05"))
		if pretty {
			header = headerStyle.Render(header)
		}
		_, err := fmt.Fprintf(w, "%s\n%s\n", header, md)
		return err
	}
}
