// Package moderation provides the pre-release safety gate for agent
// output.
//
// The invocation engine runs a Gate exactly once per completed assistant
// message, never per token: moderation needs the full content. When a gate
// flags a reply, the engine substitutes SafetyNotice for the content and
// records the category in the message metadata; the run still completes
// normally. Tokens already streamed to the caller before the gate ran are
// not withdrawn — the protocol trades post-hoc redaction for latency, and
// that trade-off is deliberate.
package moderation

import "context"

// SafetyNotice replaces the content of a flagged assistant message.
const SafetyNotice = "This response was flagged for unsafe content and has been withheld."

// Verdict is a gate's decision for one candidate text.
// Verdicts are never persisted on their own; a flagged verdict is only
// reflected in the released message's metadata.
type Verdict struct {
	Flagged  bool   `json:"flagged"`
	Category string `json:"category,omitempty"`
}

// Gate checks candidate output before release to the caller.
// Check must be side-effect-free from the caller's perspective. A non-nil
// error means the check could not be performed; callers must treat that as
// a run failure, never as "not flagged".
type Gate interface {
	Check(ctx context.Context, candidate string) (Verdict, error)
}

// Disabled is a Gate that never flags. Used when moderation is turned off
// in configuration.
type Disabled struct{}

// Check always passes.
func (Disabled) Check(ctx context.Context, candidate string) (Verdict, error) {
	return Verdict{}, nil
}
