package embedkit

// Audio container/codec identifiers shared by the negotiator, the player
// and the synthesis routes.
const (
	FormatMP3  = "mp3"
	FormatWebM = "webm"

	MIMETypeMP3      = "audio/mpeg"
	MIMETypeWebMOpus = `audio/webm;codecs=opus`
)

// EngineFamily identifies a runtime's media engine lineage. Only the Gecko
// family changes negotiation: its progressive MP3 buffering is unreliable.
type EngineFamily string

const (
	EngineUnknown EngineFamily = ""
	EngineBlink   EngineFamily = "blink"
	EngineGecko   EngineFamily = "gecko"
	EngineWebKit  EngineFamily = "webkit"
)

// MediaCapabilities describes what the runtime's media-buffering layer can
// do. Implementations are expected to be cheap: negotiation re-asks on
// every call rather than caching.
type MediaCapabilities interface {
	// SourceBufferingSupported reports whether progressive media buffering
	// exists at all in this runtime.
	SourceBufferingSupported() bool
	// TypeSupported reports whether mimeType can be fed to a progressive
	// buffer.
	TypeSupported(mimeType string) bool
	// Engine identifies the runtime's engine family.
	Engine() EngineFamily
}

// AudioFormat is the outcome of negotiation: the wire format to request,
// its MIME type, and whether progressive buffering may be used. When
// CanStream is false the caller must use whole-file playback.
type AudioFormat struct {
	Name      string
	MIMEType  string
	CanStream bool
}

// DetectBestAudioFormat picks the audio container/codec for synthesis, first
// match wins:
//
//  1. no progressive buffering at all        -> mp3, whole-file only
//  2. Gecko family with Opus-in-WebM support -> webm/opus, streamable
//  3. MP3 progressive buffering supported    -> mp3, streamable
//  4. anything else                          -> mp3, whole-file only
//
// Pure function of caps; no network I/O, no caching.
func DetectBestAudioFormat(caps MediaCapabilities) AudioFormat {
	if caps == nil || !caps.SourceBufferingSupported() {
		return AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: false}
	}
	if caps.Engine() == EngineGecko && caps.TypeSupported(MIMETypeWebMOpus) {
		return AudioFormat{Name: FormatWebM, MIMEType: MIMETypeWebMOpus, CanStream: true}
	}
	if caps.TypeSupported(MIMETypeMP3) {
		return AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: true}
	}
	return AudioFormat{Name: FormatMP3, MIMEType: MIMETypeMP3, CanStream: false}
}

// StaticCapabilities is a fixed MediaCapabilities value, the deterministic
// implementation used by tests and by hosts that know their runtime up
// front.
type StaticCapabilities struct {
	SourceBuffering bool
	SupportedTypes  []string
	Family          EngineFamily
}

func (s StaticCapabilities) SourceBufferingSupported() bool { return s.SourceBuffering }

func (s StaticCapabilities) TypeSupported(mimeType string) bool {
	for _, t := range s.SupportedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

func (s StaticCapabilities) Engine() EngineFamily { return s.Family }

// WholeFileOnly is the degenerate capability set: no progressive buffering
// anywhere, every negotiation lands on whole-file MP3.
func WholeFileOnly() StaticCapabilities {
	return StaticCapabilities{}
}

// ProgressiveMP3 is the common capability set: progressive buffering with
// MP3 support on a non-Gecko engine.
func ProgressiveMP3() StaticCapabilities {
	return StaticCapabilities{
		SourceBuffering: true,
		SupportedTypes:  []string{MIMETypeMP3},
		Family:          EngineBlink,
	}
}
