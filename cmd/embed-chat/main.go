// Command embed-chat is a terminal client for an embeddable-chat backend:
// it streams assistant responses to stdout and, when text-to-speech is
// enabled, plays them through a local ffplay process.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/embedkit/embedkit/sdk"
)

type options struct {
	baseURL    string
	embedID    string
	username   string
	language   string
	sessionDir string

	speak      bool
	noAudio    bool
	ffplayPath string
	volume     int
	debug      bool
}

func main() {
	os.Exit(runMain())
}

func runMain() int {
	// Best effort; flags and real env still win.
	_ = godotenv.Load()

	var opt options
	flag.StringVar(&opt.baseURL, "base-url", strings.TrimSpace(os.Getenv("EMBED_BASE_URL")), "Embed API base URL, e.g. https://host/api/embed (also reads EMBED_BASE_URL)")
	flag.StringVar(&opt.embedID, "embed-id", strings.TrimSpace(os.Getenv("EMBED_ID")), "Embed id (also reads EMBED_ID)")
	flag.StringVar(&opt.username, "username", "", "Optional visitor name sent with every message")
	flag.StringVar(&opt.language, "language", "", "Optional language hint")
	flag.StringVar(&opt.sessionDir, "session-dir", defaultSessionDir(), "Directory for the persisted session id")
	flag.BoolVar(&opt.speak, "speak", false, "Speak assistant responses aloud")
	flag.BoolVar(&opt.noAudio, "no-audio", false, "Never spawn ffplay; buffer audio in memory instead")
	flag.StringVar(&opt.ffplayPath, "ffplay-path", "ffplay", "Path to ffplay executable")
	flag.IntVar(&opt.volume, "volume", 80, "ffplay volume, 0-100")
	flag.BoolVar(&opt.debug, "debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if opt.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if opt.baseURL == "" || opt.embedID == "" {
		fmt.Fprintln(os.Stderr, "embed-chat: -base-url and -embed-id are required")
		return 2
	}

	client, err := embedkit.NewClient(embedkit.EmbedSettings{
		BaseAPIURL: opt.baseURL,
		EmbedID:    opt.embedID,
		Username:   opt.username,
		Language:   opt.language,
		EnableTTS:  opt.speak,
	}, embedkit.WithLogger(logger), embedkit.WithUserAgent("embed-chat/1.0"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "embed-chat: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !client.Sessions.Enabled(ctx) {
		fmt.Fprintln(os.Stderr, "embed-chat: this embed is disabled")
		return 1
	}

	store := &embedkit.FileSessionStore{Dir: opt.sessionDir}
	sessionID := client.Sessions.ResolveSessionID(store)
	logger.Debug("resolved session", "session_id", sessionID)

	var sink embedkit.AudioSink
	if opt.noAudio {
		sink = embedkit.NewMemorySink()
	} else {
		sink = newFFPlaySink(opt.ffplayPath, opt.volume, logger)
	}
	player := embedkit.NewSpeechPlayer(client, sink, embedkit.ProgressiveMP3())

	speaking := opt.speak
	if speaking && !client.Audio.Status(ctx).TTS {
		fmt.Fprintln(os.Stderr, "embed-chat: backend has no text-to-speech, -speak disabled")
		speaking = false
	}

	printHistory(ctx, client, sessionID)

	fmt.Println("Type a message; /reset, /replay, /pause, /mute, /unmute, /quit.")
	scanner := bufio.NewScanner(os.Stdin)
	var lastResponse string

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return 0
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return 0
		case line == "/reset":
			if client.Sessions.Reset(ctx, sessionID) {
				fmt.Println("Conversation cleared.")
			} else {
				fmt.Println("Reset failed.")
			}
			continue
		case line == "/mute":
			speaking = false
			player.Pause()
			continue
		case line == "/unmute":
			speaking = true
			continue
		case line == "/pause":
			player.Pause()
			continue
		case line == "/replay":
			if lastResponse == "" {
				fmt.Println("Nothing to replay.")
				continue
			}
			speakResponse(ctx, player, lastResponse, logger)
			continue
		}

		msg := streamOnce(ctx, client, sessionID, line)
		if msg.Error != "" {
			fmt.Fprintf(os.Stderr, "embed-chat: %s\n", msg.Error)
			continue
		}
		lastResponse = msg.Text
		if speaking {
			speakResponse(ctx, player, msg.Text, logger)
		}
	}
}

// streamOnce runs one exchange, printing response chunks as they arrive.
func streamOnce(ctx context.Context, client *embedkit.Client, sessionID, message string) embedkit.AssistantMessage {
	st := client.Chat.OpenStream(ctx, sessionID, message)
	for event := range st.Events() {
		if event.Kind == embedkit.EventTextChunk || event.Kind == embedkit.EventTextResponse {
			fmt.Print(event.TextResponse)
		}
	}
	fmt.Println()
	return st.Message()
}

func speakResponse(ctx context.Context, player *embedkit.SpeechPlayer, response string, logger *slog.Logger) {
	text := embedkit.PlainTextForSpeech(response)
	if text == "" {
		return
	}
	player.Speak(ctx, text, embedkit.PlaybackCallbacks{
		OnComplete: func() { logger.Debug("speech fully buffered") },
		OnError:    func(msg string) { fmt.Fprintf(os.Stderr, "embed-chat: %s\n", msg) },
	})
}

func printHistory(ctx context.Context, client *embedkit.Client, sessionID string) {
	history, err := client.Sessions.History(ctx, sessionID)
	if err != nil || len(history) == 0 {
		return
	}
	for _, msg := range history {
		prefix := "assistant"
		if msg.Sender == "user" {
			prefix = "you"
		}
		fmt.Printf("[%s] %s\n", prefix, msg.Content)
	}
}

func defaultSessionDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".embed-chat"
	}
	return dir + "/embed-chat"
}
