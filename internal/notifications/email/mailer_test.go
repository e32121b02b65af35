package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inboxinspire/internal/external"
	"inboxinspire/internal/types"
)

type mockProvider struct {
	id   string
	err  error
	sent []external.EmailMessage
}

func (m *mockProvider) Send(_ context.Context, msg external.EmailMessage) (string, error) {
	m.sent = append(m.sent, msg)
	return m.id, m.err
}

type mockLogger struct {
	lines []string
}

func (l *mockLogger) Info(msg string, args ...any)  { l.record(msg, args) }
func (l *mockLogger) Error(msg string, args ...any) { l.record(msg, args) }
func (l *mockLogger) Warn(msg string, args ...any)  { l.record(msg, args) }
func (l *mockLogger) With(args ...any) types.Logger { return l }

func (l *mockLogger) record(msg string, args []any) {
	var b strings.Builder
	b.WriteString(msg)
	for _, a := range args {
		b.WriteString(" ")
		if s, ok := a.(string); ok {
			b.WriteString(s)
		}
	}
	l.lines = append(l.lines, b.String())
}

var testSender = Sender{Address: "hello@inboxinspire.app", Name: "InboxInspire"}

func TestMailer_Send_Success(t *testing.T) {
	provider := &mockProvider{id: "msg-1"}
	logger := &mockLogger{}
	m := NewMailer(provider, testSender, 0, logger)

	res := m.Send(context.Background(), " jane@example.com ", "Subject", "Body", "p1")

	if !res.OK || res.ProviderMessageID != "msg-1" || res.Error != "" {
		t.Fatalf("result = %+v", res)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("sent %d messages", len(provider.sent))
	}
	got := provider.sent[0]
	if got.To != "jane@example.com" || got.FromAddress != testSender.Address || got.ReferenceID != "p1" {
		t.Errorf("message = %+v", got)
	}
	for _, line := range logger.lines {
		if strings.Contains(line, "jane@example.com") {
			t.Errorf("recipient logged unredacted: %q", line)
		}
	}
}

func TestMailer_Send_Failures(t *testing.T) {
	tests := []struct {
		name      string
		recipient string
		err       error
		permanent bool
		calls     int
	}{
		{"transient", "a@example.com", types.NewAppError(types.ErrCodeUpstreamUnavailable, "down", nil), false, 1},
		{"blocked", "a@example.com", types.NewAppError(types.ErrCodeEmailBlocked, "suppressed", nil), true, 1},
		{"invalid address", "not-an-address", nil, true, 0},
		{"empty address", "", nil, true, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{err: tt.err}
			m := NewMailer(provider, testSender, 0, &mockLogger{})

			res := m.Send(context.Background(), tt.recipient, "s", "b", "p1")

			if res.OK {
				t.Fatal("expected failure")
			}
			if res.Error == "" {
				t.Error("expected error string")
			}
			if res.Permanent != tt.permanent {
				t.Errorf("Permanent = %v, want %v", res.Permanent, tt.permanent)
			}
			if len(provider.sent) != tt.calls {
				t.Errorf("provider calls = %d, want %d", len(provider.sent), tt.calls)
			}
		})
	}
}

func TestMailer_Send_ThrottleHonorsContext(t *testing.T) {
	provider := &mockProvider{id: "x"}
	m := NewMailer(provider, testSender, 0.001, &mockLogger{})

	// The single burst token is spent by the first send.
	if res := m.Send(context.Background(), "a@example.com", "s", "b", "p1"); !res.OK {
		t.Fatalf("first send failed: %+v", res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := m.Send(ctx, "a@example.com", "s", "b", "p2")
	if res.OK || res.Permanent {
		t.Errorf("result = %+v, want transient failure", res)
	}
	if len(provider.sent) != 1 {
		t.Errorf("provider calls = %d, want 1", len(provider.sent))
	}
}

func TestMailer_Send_PlainProviderError(t *testing.T) {
	m := NewMailer(&mockProvider{err: errors.New("boom")}, testSender, 10, &mockLogger{})
	res := m.Send(context.Background(), "a@example.com", "s", "b", "p1")
	if res.OK || res.Error != "boom" {
		t.Errorf("result = %+v", res)
	}
}
