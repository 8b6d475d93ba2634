package audio

import "context"

// Processor defines an interface for audio processing operations.
type Processor interface {
	Decode(ctx context.Context, inputFile string) (*Segment, error)
	Probe(ctx context.Context, inputFile string) (*ProbeInfo, error)
	ConvertToWAV(ctx context.Context, inputFile, outputFile string, sampleRate, channels int) error
}

var _ Processor = (*FFmpegProcessor)(nil)
