package embedkit

import (
	"regexp"
	"strings"
)

var (
	thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)
	thinkInnerRe = regexp.MustCompile(`(?s)<think>(.*?)</think>`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)

	markdownStripper = strings.NewReplacer(
		"#", "", "*", "", "_", "", "`", "", "~", "",
		"[", "", "]", "", "(", "", ")", "",
	)
)

// SplitThoughts separates <think>…</think> reasoning blocks from the
// visible response text.
func SplitThoughts(message string) (thoughts []string, response string) {
	for _, match := range thinkInnerRe.FindAllStringSubmatch(message, -1) {
		if t := strings.TrimSpace(match[1]); t != "" {
			thoughts = append(thoughts, t)
		}
	}
	response = strings.TrimSpace(thinkBlockRe.ReplaceAllString(message, ""))
	return thoughts, response
}

// PlainTextForSpeech reduces an assistant message to speakable text:
// reasoning blocks, markdown punctuation and HTML tags are stripped. This
// is the form SpeechPlayer.Speak expects.
func PlainTextForSpeech(message string) string {
	_, response := SplitThoughts(message)
	response = markdownStripper.Replace(response)
	response = htmlTagRe.ReplaceAllString(response, "")
	return strings.TrimSpace(response)
}
