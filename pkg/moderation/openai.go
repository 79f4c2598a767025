package moderation

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// ModerationClient is the slice of the OpenAI client this gate needs,
// kept narrow for testability.
type ModerationClient interface {
	Moderations(ctx context.Context, request openai.ModerationRequest) (openai.ModerationResponse, error)
}

// OpenAIGate checks candidates against the OpenAI moderation API.
// Transport or model failures surface as errors; the engine classifies
// them as run failures rather than passing unvetted content.
type OpenAIGate struct {
	client ModerationClient
	model  string
}

// NewOpenAIGate creates a gate with a default OpenAI client.
func NewOpenAIGate(apiKey string) *OpenAIGate {
	return NewOpenAIGateWithClient(openai.NewClient(apiKey))
}

// NewOpenAIGateWithClient creates a gate with a custom client (useful for
// testing).
func NewOpenAIGateWithClient(client ModerationClient) *OpenAIGate {
	return &OpenAIGate{
		client: client,
		model:  openai.ModerationTextStable,
	}
}

// Check submits the candidate to the moderation endpoint.
func (g *OpenAIGate) Check(ctx context.Context, candidate string) (Verdict, error) {
	resp, err := g.client.Moderations(ctx, openai.ModerationRequest{
		Input: candidate,
		Model: g.model,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("moderation request: %w", err)
	}
	if len(resp.Results) == 0 {
		return Verdict{}, fmt.Errorf("moderation response contained no results")
	}

	result := resp.Results[0]
	if !result.Flagged {
		return Verdict{}, nil
	}
	return Verdict{Flagged: true, Category: flaggedCategory(result.Categories)}, nil
}

// flaggedCategory picks the first raised category flag, in a stable order.
func flaggedCategory(c openai.ResultCategories) string {
	switch {
	case c.SexualMinors:
		return "sexual/minors"
	case c.Sexual:
		return "sexual"
	case c.HateThreatening:
		return "hate/threatening"
	case c.Hate:
		return "hate"
	case c.ViolenceGraphic:
		return "violence/graphic"
	case c.Violence:
		return "violence"
	case c.SelfHarm:
		return "self-harm"
	case c.HarassmentThreatening:
		return "harassment/threatening"
	case c.Harassment:
		return "harassment"
	default:
		return "flagged"
	}
}
