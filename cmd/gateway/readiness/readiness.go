// Package readiness decides whether a provider payload means a video is
// actually playable. The rule is implemented once and shared by webhook
// ingestion and the poll-fallback path so both reach identical
// conclusions from equivalent input.
package readiness

import (
	"fmt"

	"github.com/clipstream/streamgate/cmd/gateway/providers"
)

// completionThreshold is the completion percentage at which every
// rendition is encoded and the playback manifest is reliably fetchable.
const completionThreshold = 100

// Decision is the evaluator output. Neither flag set means the video is
// still encoding: an expected intermediate state, not an error.
type Decision struct {
	Ready     bool
	Failed    bool
	Reason    string
	ErrorCode string
	ErrorText string
}

// Evaluate applies the readiness rule to a normalized provider payload.
//
// A provider claiming "ready" is not sufficient: some providers set the
// flag as soon as a single quality rendition finishes, while the
// manifest only resolves once all renditions do. Treating partial
// completion as ready hands clients a player pointed at a 404ing
// manifest. Ready therefore requires the provider claim, a manifest
// URL, and full completion percentage together.
//
// Pure function of its input: no external state, safe to call from any
// ingress path, idempotent on repeated payloads.
func Evaluate(v *providers.Video) Decision {
	if v.ErrorCode != "" {
		return Decision{
			Failed:    true,
			Reason:    "provider reported terminal error",
			ErrorCode: v.ErrorCode,
			ErrorText: v.ErrorText,
		}
	}

	if !v.ReadyToStream {
		return Decision{Reason: fmt.Sprintf("provider state %q not ready", v.State)}
	}

	if v.ManifestURL == "" {
		return Decision{Reason: "ready claimed but no playback manifest yet"}
	}

	if v.PctComplete < completionThreshold {
		return Decision{Reason: fmt.Sprintf("ready claimed at %.0f%% completion, waiting for all renditions", v.PctComplete)}
	}

	return Decision{Ready: true, Reason: "all renditions encoded, manifest present"}
}
