package assistant

import (
	"context"

	"treinos/api/internal/plan"
)

// PlanSource yields the current plan snapshot for prompt context. The
// coach reads the plan but never mutates it.
type PlanSource interface {
	Snapshot() plan.Plan
}

// Coach orchestrates one conversation turn: transcript bookkeeping,
// prompt assembly and the proxy round-trip.
type Coach struct {
	client     *Client
	transcript *Transcript
	plans      PlanSource
}

func NewCoach(client *Client, transcript *Transcript, plans PlanSource) *Coach {
	return &Coach{client: client, transcript: transcript, plans: plans}
}

// Transcript exposes the stored history for rendering.
func (c *Coach) Transcript(ctx context.Context) []Message {
	return c.transcript.Load(ctx)
}

// Send records the user turn plus a loading placeholder, asks the proxy,
// and replaces the placeholder in place with the reply. On failure the
// placeholder becomes an inline error message so the transcript is never
// lost; the error is still returned for the caller's status reporting.
func (c *Coach) Send(ctx context.Context, userText string) (string, error) {
	history := c.transcript.Load(ctx)
	_ = c.transcript.Append(ctx, RoleUser, userText)
	_ = c.transcript.Append(ctx, RoleLoading, "…")

	prompt := BuildPrompt(c.plans.Snapshot(), history, userText)
	reply, err := c.client.Complete(ctx, prompt)
	if err != nil {
		errText := "Erro ao contatar o treinador: " + err.Error()
		_ = c.transcript.ReplaceLastLoading(ctx, errText)
		return errText, err
	}

	_ = c.transcript.ReplaceLastLoading(ctx, reply)
	return reply, nil
}
