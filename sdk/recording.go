package embedkit

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/orcaman/writerseeker"
)

// Recording is captured audio packaged for a transcription upload.
type Recording struct {
	Data       []byte
	MIMEType   string
	SampleRate int
}

// NewWAVRecording wraps raw 16-bit mono PCM samples in an in-memory WAV
// container, the Go-native stand-in for a browser's recorded blob. The
// result goes straight into AudioService.Transcribe.
func NewWAVRecording(pcm []int16, sampleRate int) (*Recording, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("embedkit: empty recording")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("embedkit: invalid sample rate %d", sampleRate)
	}

	samples := make([]int, len(pcm))
	for i, s := range pcm {
		samples[i] = int(s)
	}

	// Emulate a file in RAM so no real file is ever created.
	file := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	data, err := io.ReadAll(file.Reader())
	if err != nil {
		return nil, fmt.Errorf("read wav buffer: %w", err)
	}

	return &Recording{
		Data:       data,
		MIMEType:   "audio/wav",
		SampleRate: sampleRate,
	}, nil
}

// TranscribeRequest packages the recording for AudioService.Transcribe.
func (r *Recording) TranscribeRequest(language string) *TranscribeRequest {
	return &TranscribeRequest{
		Audio:    r.Data,
		Filename: "recording.wav",
		MIMEType: r.MIMEType,
		Language: language,
	}
}
