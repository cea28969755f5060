// Package synth orchestrates batch speech synthesis against a hosted
// generative speech API.
//
// The [Provider] interface is the abstraction over the remote service; the
// [Orchestrator] fans segments out concurrently and reassembles the results
// in script order. Providers are expected to be safe for concurrent use,
// since multiple segments of the same batch are synthesised in parallel.
package synth

import (
	"context"
	"errors"
	"fmt"

	"github.com/talandis/cadenza/pkg/pcm"
)

// ErrValidation reports an invalid synthesis request: an empty script or an
// unusable multi-speaker configuration. It is surfaced before any network
// activity and is never retried.
var ErrValidation = errors.New("synth: invalid request")

// Speaker names one voice of a multi-speaker script.
type Speaker struct {
	// Name is the speaker tag as it appears in the script.
	Name string

	// VoiceID is the provider voice used for this speaker.
	VoiceID string
}

// SpeakerField selects which field of a [Speaker] an update targets.
type SpeakerField string

const (
	SpeakerFieldName    SpeakerField = "name"
	SpeakerFieldVoiceID SpeakerField = "voiceId"
)

// Set updates the selected field. Unknown fields are rejected so editing
// surfaces cannot silently grow the record.
func (s *Speaker) Set(field SpeakerField, value string) error {
	switch field {
	case SpeakerFieldName:
		s.Name = value
	case SpeakerFieldVoiceID:
		s.VoiceID = value
	default:
		return fmt.Errorf("%w: unknown speaker field %q", ErrValidation, field)
	}
	return nil
}

// Config selects the voice(s) and delivery style for a synthesis run.
// When Speakers is non-empty the run is in multi-speaker mode and Voice is
// ignored; otherwise Voice names the single prebuilt voice.
type Config struct {
	// Voice is the prebuilt voice identifier for single-voice runs.
	Voice string

	// Speakers maps script speaker tags to voices for multi-speaker runs.
	Speakers []Speaker

	// Style is an optional free-text delivery instruction.
	Style string
}

// Validate checks the request preconditions. Multi-speaker mode requires at
// least one speaker with both a non-empty name and a non-empty voice id;
// single-voice mode requires a voice identifier.
func (c Config) Validate() error {
	if len(c.Speakers) == 0 {
		if c.Voice == "" {
			return fmt.Errorf("%w: no voice configured", ErrValidation)
		}
		return nil
	}
	for _, s := range c.Speakers {
		if s.Name != "" && s.VoiceID != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: multi-speaker mode needs at least one speaker with both a name and a voice id", ErrValidation)
}

// Provider is the abstraction over a hosted generative speech API.
//
// Synthesize returns the inline base64-encoded PCM payload for text, or an
// empty payload with a nil error when the service produced no audio for the
// segment (the segment is then skipped, not failed).
//
// Implementations must be safe for concurrent use.
type Provider interface {
	Synthesize(ctx context.Context, text string, cfg Config) (string, error)

	// SampleRate is the fixed output sample rate of payloads in Hz.
	// Payloads are mono.
	SampleRate() int
}

// Chunk is one completed (text, decoded audio) pair ready for playback or
// export. Chunks are never mutated after creation.
type Chunk struct {
	// ID is a stable identifier for the chunk.
	ID string

	// Text is the source segment text.
	Text string

	// Audio is the decoded audio buffer.
	Audio *pcm.Buffer
}
