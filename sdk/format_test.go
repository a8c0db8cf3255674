package embedkit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectBestAudioFormat(t *testing.T) {
	cases := []struct {
		name string
		caps MediaCapabilities
		want AudioFormat
	}{
		{
			name: "no progressive buffering",
			caps: WholeFileOnly(),
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: false},
		},
		{
			name: "nil capabilities",
			caps: nil,
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: false},
		},
		{
			name: "gecko with opus webm",
			caps: StaticCapabilities{
				SourceBuffering: true,
				SupportedTypes:  []string{MIMETypeWebMOpus, MIMETypeMP3},
				Family:          EngineGecko,
			},
			want: AudioFormat{Name: FormatWebM, MIMEType: MIMETypeWebMOpus, CanStream: true},
		},
		{
			name: "gecko without opus webm falls through to mp3",
			caps: StaticCapabilities{
				SourceBuffering: true,
				SupportedTypes:  []string{MIMETypeMP3},
				Family:          EngineGecko,
			},
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: true},
		},
		{
			name: "blink with opus webm still prefers mp3",
			caps: StaticCapabilities{
				SourceBuffering: true,
				SupportedTypes:  []string{MIMETypeWebMOpus, MIMETypeMP3},
				Family:          EngineBlink,
			},
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: true},
		},
		{
			name: "progressive mp3",
			caps: ProgressiveMP3(),
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: true},
		},
		{
			name: "buffering without any supported type",
			caps: StaticCapabilities{SourceBuffering: true, Family: EngineWebKit},
			want: AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: false},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DetectBestAudioFormat(tc.caps))
		})
	}
}

// Negotiation is a pure function of the capability set: repeated calls with
// the same caps give identical answers.
func TestDetectBestAudioFormat_Deterministic(t *testing.T) {
	caps := ProgressiveMP3()
	first := DetectBestAudioFormat(caps)
	for i := 0; i < 4; i++ {
		require.Equal(t, first, DetectBestAudioFormat(caps))
	}
}
