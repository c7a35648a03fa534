package notify

import (
	"context"

	"github.com/securebank/backoffice/internal/logging"
)

// LogDeliverer writes codes to the log instead of sending them.
// Only for local development.
type LogDeliverer struct {
	log logging.Logger
}

func NewLogDeliverer(log logging.Logger) *LogDeliverer {
	return &LogDeliverer{log: log}
}

func (d *LogDeliverer) Deliver(ctx context.Context, address, code, username string) error {
	d.log.Warn(ctx, "otp code (log delivery, development only)",
		"username", username,
		"address", MaskAddress(address),
		"code", code,
	)
	return nil
}
