// Package notify delivers one-time codes to operators.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Deliverer sends a code to a contact address. Implementations must honour
// ctx cancellation; the caller bounds every delivery with a timeout.
type Deliverer interface {
	Deliver(ctx context.Context, address, code, username string) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, address, code, username string) error

func (f DelivererFunc) Deliver(ctx context.Context, address, code, username string) error {
	return f(ctx, address, code, username)
}

const codeSubject = "Code MFA - Connexion Bancaire"

// composeBody renders the message text sent to the operator.
func composeBody(username, code string, validity time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", username)
	fmt.Fprintf(&b, "Votre code de vérification MFA est : %s\n\n", code)
	fmt.Fprintf(&b, "Ce code est valable pendant %d minutes.\n\n", int(validity.Minutes()))
	b.WriteString("Si vous n'êtes pas à l'origine de cette demande, ignorez ce message.\n")
	b.WriteString("Cordialement,\nSystème Bancaire Sécurisé\n")
	return b.String()
}

// MaskAddress hides an email address except for a short prefix and the domain,
// e.g. "alice@bank.test" becomes "ali***@bank.test".
func MaskAddress(address string) string {
	local, domain, ok := strings.Cut(address, "@")
	if !ok || domain == "" {
		return "***"
	}
	prefix := local
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return prefix + "***@" + domain
}
