/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/securebank/backoffice/config"
	"github.com/securebank/backoffice/internal/logging"
	"github.com/securebank/backoffice/internal/mq"
	"github.com/securebank/backoffice/internal/notify"
	"github.com/spf13/cobra"
)

// mailerCmd consumes queued code deliveries and sends them over SMTP.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Send queued one-time codes by email",
	Long: `Consumes the code delivery queue filled by API servers running with
DELIVERY_BACKEND=mq and sends each code over SMTP. Usage:

	backoffice mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, closer := newLogger(cfg)
		defer closer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("mailer needs a broker: %w", err)
		}
		defer broker.Close()

		handler := mailHandler(notify.NewSMTPDeliverer(cfg.SMTP, cfg.OTP.TTL), cfg, log.With("component", "mailer"))

		log.Info(ctx, "mailer consuming", "queue", cfg.Delivery.Queue)
		err = broker.Subscribe(ctx, cfg.Delivery.Queue, handler)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

// mailHandler sends one queued code. Malformed messages are dropped; send
// failures are returned so the broker redelivers.
func mailHandler(deliverer notify.Deliverer, cfg config.Config, log logging.Logger) mq.Handler {
	return func(ctx context.Context, msg mq.Message) error {
		code, err := notify.DecodeCodeMessage(msg.Data)
		if err != nil {
			log.Error(ctx, "dropping malformed delivery", "message_id", msg.ID, "error", err)
			return nil
		}

		sendCtx, cancel := context.WithTimeout(ctx, cfg.Delivery.Timeout)
		defer cancel()
		if err := deliverer.Deliver(sendCtx, code.Address, code.Code, code.Username); err != nil {
			log.Warn(ctx, "delivery failed", "username", code.Username, "address", notify.MaskAddress(code.Address), "error", err)
			return err
		}
		log.Info(ctx, "code delivered", "username", code.Username, "address", notify.MaskAddress(code.Address))
		return nil
	}
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
