package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"golang.org/x/time/rate"

	"inboxinspire/internal/external"
	"inboxinspire/internal/types"
)

// Sender is the From identity of every outgoing message.
type Sender struct {
	Address string
	Name    string
}

// SendResult is the outcome of one delivery. Send never returns an error:
// failures are reported through OK=false and Error.
type SendResult struct {
	OK                bool
	Error             string
	ProviderMessageID string
	// Permanent marks failures that retrying cannot fix.
	Permanent bool
}

// Mailer delivers plain-text messages through an EmailProvider.
type Mailer struct {
	provider external.EmailProvider
	limiter  *rate.Limiter
	from     Sender
	logger   types.Logger
}

// NewMailer creates a Mailer allowing ratePerSecond sends on average, with
// bursts of the same size. A non-positive rate disables throttling.
func NewMailer(provider external.EmailProvider, from Sender, ratePerSecond float64, logger types.Logger) *Mailer {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Mailer{
		provider: provider,
		limiter:  limiter,
		from:     from,
		logger:   logger,
	}
}

// Send delivers one message. The pending send id travels as referenceID
// so provider events can be correlated.
func (m *Mailer) Send(ctx context.Context, recipient, subject, body, referenceID string) SendResult {
	if _, err := mail.ParseAddress(strings.TrimSpace(recipient)); err != nil {
		return m.failure(recipient, referenceID, fmt.Errorf("%w: %v", ErrInvalidRecipient, err))
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return m.failure(recipient, referenceID, fmt.Errorf("mailer throttle: %w", err))
	}

	id, err := m.provider.Send(ctx, external.EmailMessage{
		To:          strings.TrimSpace(recipient),
		FromAddress: m.from.Address,
		FromName:    m.from.Name,
		Subject:     subject,
		Body:        body,
		ReferenceID: referenceID,
	})
	if err != nil {
		return m.failure(recipient, referenceID, err)
	}

	m.logger.Info("email delivered",
		"to", RedactEmail(recipient),
		"reference_id", referenceID,
		"provider_message_id", id,
	)
	return SendResult{OK: true, ProviderMessageID: id}
}

func (m *Mailer) failure(recipient, referenceID string, err error) SendResult {
	permanent := IsPermanent(err)
	m.logger.Warn("email delivery failed",
		"to", RedactEmail(recipient),
		"reference_id", referenceID,
		"permanent", permanent,
		"error", err.Error(),
	)
	return SendResult{OK: false, Error: err.Error(), Permanent: permanent}
}
