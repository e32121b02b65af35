// Package content produces the subject and body of each scheduled message.
// Generation never fails: any upstream problem yields the fallback text.
package content

import (
	"context"
	"fmt"
	"strings"

	"inboxinspire/internal/external"
	"inboxinspire/internal/types"
)

const (
	baseSubject = "Your Daily Motivation"
	maxTokens   = 400
	temperature = 0.8
)

// OwnerContext is what the generator needs to know about the recipient.
type OwnerContext struct {
	Kind        types.OwnerKind
	Title       string
	GoalsText   string
	Personality *types.Personality
	StreakCount int
}

// Content is a ready-to-send message.
type Content struct {
	Subject      string
	Body         string
	UsedFallback bool
	Personality  types.Personality
}

// Generator builds prompts from the owner's personality and asks the LLM
// for a message body.
type Generator struct {
	llm    external.LLMClient
	logger types.Logger
}

// NewGenerator creates a Generator. A nil llm always falls back.
func NewGenerator(llm external.LLMClient, logger types.Logger) *Generator {
	return &Generator{llm: llm, logger: logger}
}

// Generate returns the message for oc. The body is the fallback text when
// the LLM is unavailable, errors, or replies with nothing.
func (g *Generator) Generate(ctx context.Context, oc OwnerContext) Content {
	c := Content{Subject: Subject(oc)}
	if oc.Personality != nil {
		c.Personality = *oc.Personality
	}

	if g.llm == nil {
		c.Body, c.UsedFallback = FallbackBody(oc.GoalsText), true
		return c
	}

	body, err := g.llm.Complete(ctx, external.CompletionRequest{
		SystemPrompt: SystemPrompt(oc.Personality),
		UserPrompt:   UserPrompt(oc),
		MaxTokens:    maxTokens,
		Temperature:  temperature,
	})
	body = strings.TrimSpace(body)
	if err != nil || body == "" {
		if err != nil {
			g.logger.Warn("content generation failed, using fallback", "error", err)
		}
		c.Body, c.UsedFallback = FallbackBody(oc.GoalsText), true
		return c
	}

	c.Body = body
	return c
}

// Subject returns the message subject for oc.
func Subject(oc OwnerContext) string {
	if oc.Kind == types.OwnerKindGoal && strings.TrimSpace(oc.Title) != "" {
		return baseSubject + ": " + strings.TrimSpace(oc.Title)
	}
	return baseSubject
}

// FallbackBody is the static message used whenever generation is unavailable.
func FallbackBody(goals string) string {
	return fmt.Sprintf("Keep pushing forward on your goals: %s. Every step counts!", goals)
}

// SystemPrompt describes the voice for p. A nil personality uses a neutral writer.
func SystemPrompt(p *types.Personality) string {
	if p == nil {
		return "You are a motivational message writer. Write engaging and inspiring messages."
	}
	switch p.Type {
	case types.PersonalityFamous:
		return fmt.Sprintf("You are %s, the famous inspirational figure. Write motivational messages in your "+
			"distinctive style, tone, and philosophy. Reference your known quotes and wisdom when appropriate.", p.Value)
	case types.PersonalityTone:
		return fmt.Sprintf("You are a motivational message writer with a %s tone. Write engaging and inspiring "+
			"messages that match this tone perfectly.", p.Value)
	default:
		return "You are a motivational message writer. " + p.Value
	}
}

// UserPrompt asks for a short message about the owner's goals.
func UserPrompt(oc OwnerContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a short, powerful motivational message (2-3 paragraphs) for someone working on these goals: %s.", oc.GoalsText)
	if oc.Kind == types.OwnerKindGoal && oc.Title != "" {
		fmt.Fprintf(&b, " The goal is titled %q.", oc.Title)
	}
	if oc.StreakCount > 1 {
		fmt.Fprintf(&b, " They have received a message %d days in a row.", oc.StreakCount)
	}
	b.WriteString(" Make it personal, actionable, and inspiring.")
	return b.String()
}
