package external

import (
	"context"
	"fmt"
	"sync/atomic"

	"inboxinspire/internal/types"
)

// StubEmailProvider implements EmailProvider by logging each message and
// returning a fake message id. Selected when SENDGRID_API_KEY is empty.
type StubEmailProvider struct {
	logger types.Logger
	seq    atomic.Int64
}

// NewStubEmailProvider creates a new StubEmailProvider.
func NewStubEmailProvider(logger types.Logger) *StubEmailProvider {
	return &StubEmailProvider{logger: logger}
}

func (s *StubEmailProvider) Send(ctx context.Context, msg EmailMessage) (string, error) {
	n := s.seq.Add(1)
	s.logger.Info("stub: email send",
		"reference_id", msg.ReferenceID,
		"subject", msg.Subject,
		"body_len", len(msg.Body),
	)
	return fmt.Sprintf("stub-%d", n), nil
}

// StubLLMClient always fails, forcing the content generator onto its
// fallback text. Selected when LLM_API_KEY is empty.
type StubLLMClient struct{}

func (StubLLMClient) Complete(context.Context, CompletionRequest) (string, error) {
	return "", types.NewAppError(types.ErrCodeUpstreamLLM, "content generation disabled", nil)
}

var (
	_ EmailProvider = (*StubEmailProvider)(nil)
	_ LLMClient     = StubLLMClient{}
)
