package synth

import "context"

// Request contains parameters for a single synthesis call.
type Request struct {
	Text     string
	Language string
	Voice    string
}

// Part is the audio produced for one text segment. Index is the segment's
// position in the batch.
type Part struct {
	Index int
	Audio []byte
}

// Synthesizer is the contract for the remote speech synthesis call. A
// rate-limit failure must be reported as an *Error with rate-limit status so
// the batch driver can apply the steeper backoff.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
