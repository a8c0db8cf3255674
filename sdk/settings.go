package embedkit

import (
	"errors"
	"strconv"
	"strings"
)

// EmbedSettings is the host-page configuration for one embed. It is carried
// verbatim on every request: the client interprets BaseAPIURL, EmbedID,
// Username, the overrides, and the audio toggles; everything else rides
// along untouched in Extra.
type EmbedSettings struct {
	BaseAPIURL string
	EmbedID    string
	Username   string

	// Per-embed overrides forwarded to stream-chat exactly as configured.
	// nil means "not set" and is sent as JSON null, which the backend reads
	// as "use the workspace default".
	Prompt      *string
	Model       *string
	Temperature *float64

	// Feature toggles. Audio features additionally require the backend to
	// report the capability via the audio status route.
	EnableSTT bool
	EnableTTS bool

	OpenOnLoad        bool
	Position          string
	Language          string
	BubblePersistence string

	// Extra holds attributes the client does not interpret.
	Extra map[string]string
}

// ErrInvalidSettings is returned when required settings are missing.
var ErrInvalidSettings = errors.New("embedkit: baseApiUrl and embedId are required")

// Validate checks the settings the client itself depends on.
func (s EmbedSettings) Validate() error {
	if strings.TrimSpace(s.BaseAPIURL) == "" || strings.TrimSpace(s.EmbedID) == "" {
		return ErrInvalidSettings
	}
	return nil
}

// ParseSettings builds EmbedSettings from a data-attribute map, the
// camel-cased dataset keys a script tag exposes (data-base-api-url becomes
// baseApiUrl and so on). Unknown keys are preserved in Extra.
func ParseSettings(attrs map[string]string) EmbedSettings {
	s := EmbedSettings{
		// Audio features default on; the backend capability check is the
		// real gate.
		EnableSTT: true,
		EnableTTS: true,
		Extra:     make(map[string]string),
	}

	for key, value := range attrs {
		switch key {
		case "baseApiUrl":
			s.BaseAPIURL = strings.TrimRight(strings.TrimSpace(value), "/")
		case "embedId":
			s.EmbedID = strings.TrimSpace(value)
		case "username":
			s.Username = value
		case "prompt":
			v := value
			s.Prompt = &v
		case "model":
			v := value
			s.Model = &v
		case "temperature":
			if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
				s.Temperature = &f
			}
		case "enableStt":
			s.EnableSTT = parseToggle(value, true)
		case "enableTts":
			s.EnableTTS = parseToggle(value, true)
		case "openOnLoad":
			s.OpenOnLoad = value == "on" || parseToggle(value, false)
		case "position":
			s.Position = value
		case "language":
			s.Language = value
		case "bubblePersistence":
			s.BubblePersistence = value
		default:
			s.Extra[key] = value
		}
	}
	return s
}

func parseToggle(value string, dflt bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "on", "yes", "1":
		return true
	case "false", "off", "no", "0":
		return false
	default:
		return dflt
	}
}
