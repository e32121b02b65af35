// Package email delivers generated messages through an external
// EmailProvider, smoothing throughput with a token-bucket limiter and
// classifying provider failures for the dispatch retry policy.
package email

import (
	"errors"

	"inboxinspire/internal/types"
)

var (
	// ErrRecipientBlocked means the provider refuses to deliver to the
	// recipient (suppression list, bounce block). Never retried.
	ErrRecipientBlocked = errors.New("recipient blocked by provider")

	// ErrInvalidRecipient means the address cannot be sent to at all.
	ErrInvalidRecipient = errors.New("invalid recipient address")
)

// IsBlocklistError reports whether err means the recipient is blocked,
// either as the sentinel or as an AppError with ErrCodeEmailBlocked.
func IsBlocklistError(err error) bool {
	if errors.Is(err, ErrRecipientBlocked) {
		return true
	}
	return types.IsCode(err, types.ErrCodeEmailBlocked)
}

// IsPermanent reports whether retrying the same message can never succeed.
func IsPermanent(err error) bool {
	return IsBlocklistError(err) || errors.Is(err, ErrInvalidRecipient)
}
