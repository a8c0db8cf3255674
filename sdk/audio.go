package embedkit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// AudioService covers the audio routes: capability status, speech-to-text
// uploads, and text-to-speech synthesis in both whole-file and streamed
// form.
type AudioService struct {
	client *Client
}

// AudioStatus reports which audio features the backend offers.
type AudioStatus struct {
	STT bool `json:"stt"`
	TTS bool `json:"tts"`
}

// Status fetches the backend's audio capabilities. Any error reads as
// "neither available".
func (s *AudioService) Status(ctx context.Context) AudioStatus {
	var status AudioStatus
	if err := s.client.getJSON(ctx, s.client.embedURL("audio", "status"), &status); err != nil {
		s.client.logger.Debug("audio status check failed", "error", err)
		return AudioStatus{}
	}
	return status
}

// Transcript is a speech-to-text result.
type Transcript struct {
	Text string `json:"text"`
}

// TranscribeRequest is one audio upload for transcription.
type TranscribeRequest struct {
	Audio    []byte
	Filename string // default "recording.webm"
	MIMEType string // Content-Type of the uploaded part; default "application/octet-stream"
	Language string // optional hint; empty lets the backend auto-detect
}

// Transcribe uploads audio to the public transcription route and returns
// the recognized text.
func (s *AudioService) Transcribe(ctx context.Context, req *TranscribeRequest) (*Transcript, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, fmt.Errorf("embedkit: empty transcription request")
	}

	endpoint := publicTranscribeURL(s.client.settings.BaseAPIURL)
	if req.Language != "" {
		endpoint += "?language=" + url.QueryEscape(req.Language)
	}

	filename := req.Filename
	if filename == "" {
		filename = "recording.webm"
	}

	partType := req.MIMEType
	if partType == "" {
		partType = "application/octet-stream"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", partType)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.client.do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		srvErr := serverErrorFromBody(resp.StatusCode, raw)
		if srvErr.Message == "" {
			srvErr.Message = "Transcription failed"
		}
		return nil, srvErr
	}

	var transcript Transcript
	if err := json.Unmarshal(raw, &transcript); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &transcript, nil
}

// publicTranscribeURL derives the non-embed-scoped transcription route from
// the embed base URL: {base}/api/embed → {base}/api/audio/transcribe, and a
// bare /embed suffix is stripped.
func publicTranscribeURL(base string) string {
	trimmed := strings.TrimRight(base, "/")
	switch {
	case strings.HasSuffix(trimmed, "/api/embed"):
		trimmed = strings.TrimSuffix(trimmed, "/embed")
	case strings.HasSuffix(trimmed, "/embed"):
		trimmed = strings.TrimSuffix(trimmed, "/embed")
	}
	return trimmed + "/audio/transcribe"
}

// AudioClip is a complete synthesized clip, playable as a whole file.
type AudioClip struct {
	Data     []byte
	MIMEType string
}

type synthesizeRequest struct {
	Text string `json:"text"`
}

// Synthesize performs one whole-file synthesis request. It returns
// (nil, nil) when the backend responds 204 or with an empty body, a typed
// error on any failure, and the clip otherwise.
func (s *AudioService) Synthesize(ctx context.Context, text string) (*AudioClip, error) {
	endpoint := s.client.embedURL("audio", "tts")
	resp, err := s.client.openStream(ctx, endpoint, synthesizeRequest{Text: text}, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, serverErrorFromBody(resp.StatusCode, raw)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: http.MethodPost, URL: endpoint, Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = MIMETypeMP3
	}
	return &AudioClip{Data: data, MIMEType: mimeType}, nil
}

// OpenSpeechStream opens a chunked synthesis stream in the given wire
// format ("mp3" or "webm"). The caller owns the returned body. A 204 or
// error status closes the response and returns errNoAudioContent or the
// typed error, which the player treats as its fallback trigger.
func (s *AudioService) OpenSpeechStream(ctx context.Context, text, format string) (io.ReadCloser, error) {
	endpoint := s.client.embedURL("audio", "tts-stream") + "?format=" + url.QueryEscape(format)
	resp, err := s.client.openStream(ctx, endpoint, synthesizeRequest{Text: text}, "")
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusNoContent {
		resp.Body.Close()
		return nil, errNoAudioContent
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, serverErrorFromBody(resp.StatusCode, raw)
	}
	return resp.Body, nil
}
