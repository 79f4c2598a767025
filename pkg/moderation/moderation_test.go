package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
)

func TestKeywordGate(t *testing.T) {
	gate := NewKeywordGate()
	ctx := context.Background()

	tests := []struct {
		name         string
		input        string
		wantFlagged  bool
		wantCategory string
	}{
		{
			name:  "benign text",
			input: "here is a recipe for chocolate chip cookies",
		},
		{
			name:         "dangerous instructions",
			input:        "step one: make a bomb from household items",
			wantFlagged:  true,
			wantCategory: "dangerous_instructions",
		},
		{
			name:         "credential theft",
			input:        "you could steal credentials from the vault",
			wantFlagged:  true,
			wantCategory: "criminal_planning",
		},
		{
			name:  "empty input",
			input: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := gate.Check(ctx, tt.input)
			if err != nil {
				t.Fatalf("Check() error = %v", err)
			}
			if verdict.Flagged != tt.wantFlagged {
				t.Errorf("Flagged = %v, want %v", verdict.Flagged, tt.wantFlagged)
			}
			if verdict.Category != tt.wantCategory {
				t.Errorf("Category = %q, want %q", verdict.Category, tt.wantCategory)
			}
		})
	}
}

func TestKeywordGateWithPatterns(t *testing.T) {
	gate, err := NewKeywordGateWithPatterns(map[string]string{
		"blocked": `BLOCKED`,
	})
	if err != nil {
		t.Fatalf("NewKeywordGateWithPatterns() error = %v", err)
	}

	verdict, err := gate.Check(context.Background(), "this is BLOCKED content")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !verdict.Flagged || verdict.Category != "blocked" {
		t.Errorf("verdict = %+v, want flagged with category %q", verdict, "blocked")
	}
}

func TestKeywordGateBadPattern(t *testing.T) {
	if _, err := NewKeywordGateWithPatterns(map[string]string{"x": `[`}); err == nil {
		t.Fatal("NewKeywordGateWithPatterns() with invalid regexp succeeded, want error")
	}
}

type fakeModerationClient struct {
	resp openai.ModerationResponse
	err  error
}

func (f *fakeModerationClient) Moderations(ctx context.Context, req openai.ModerationRequest) (openai.ModerationResponse, error) {
	return f.resp, f.err
}

func TestOpenAIGateFlagged(t *testing.T) {
	gate := NewOpenAIGateWithClient(&fakeModerationClient{
		resp: openai.ModerationResponse{
			Results: []openai.Result{{
				Flagged:    true,
				Categories: openai.ResultCategories{Violence: true},
			}},
		},
	})

	verdict, err := gate.Check(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if !verdict.Flagged {
		t.Error("Flagged = false, want true")
	}
	if verdict.Category != "violence" {
		t.Errorf("Category = %q, want %q", verdict.Category, "violence")
	}
}

func TestOpenAIGateErrorIsNotClean(t *testing.T) {
	gate := NewOpenAIGateWithClient(&fakeModerationClient{
		err: errors.New("connection refused"),
	})

	// A failed check must surface as an error, never as "not flagged".
	if _, err := gate.Check(context.Background(), "some text"); err == nil {
		t.Fatal("Check() with failing client succeeded, want error")
	}
}

func TestOpenAIGateEmptyResults(t *testing.T) {
	gate := NewOpenAIGateWithClient(&fakeModerationClient{})
	if _, err := gate.Check(context.Background(), "some text"); err == nil {
		t.Fatal("Check() with empty results succeeded, want error")
	}
}

func TestDisabledGate(t *testing.T) {
	verdict, err := Disabled{}.Check(context.Background(), "make a bomb")
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if verdict.Flagged {
		t.Error("Disabled gate flagged content")
	}
}
