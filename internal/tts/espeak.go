package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// runFunc executes a synthesis command with the given stdin. Injectable so
// tests run without an espeak binary installed.
type runFunc func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%s: %v: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// EspeakEngine speaks through a local espeak-ng process. It enumerates the
// installed voices once and picks the best match for the configured language
// tag, preferring an mbrola voice when one covers the language (noticeably
// higher quality than the default formant voices).
type EspeakEngine struct {
	binary   string
	language string
	run      runFunc

	mu       sync.Mutex
	voice    string
	resolved bool
}

// EspeakConfig holds configuration for the local synthesis engine.
type EspeakConfig struct {
	Binary   string // default "espeak-ng"
	Language string // BCP-47-ish tag, e.g. "ru"
}

func NewEspeakEngine(cfg EspeakConfig) *EspeakEngine {
	binary := cfg.Binary
	if binary == "" {
		binary = "espeak-ng"
	}
	language := cfg.Language
	if language == "" {
		language = "en"
	}
	return &EspeakEngine{
		binary:   binary,
		language: language,
		run:      execRun,
	}
}

func (e *EspeakEngine) Name() string { return "espeak" }

// Speak renders the text through the local process, blocking until the
// process exits.
func (e *EspeakEngine) Speak(ctx context.Context, text string) error {
	voice := e.resolveVoice(ctx)
	_, err := e.run(ctx, []byte(text), e.binary, "-v", voice, "--stdin")
	return err
}

// resolveVoice picks a voice for the configured language. The result is
// cached for the lifetime of the engine; the installed voice set does not
// change underneath a running process.
func (e *EspeakEngine) resolveVoice(ctx context.Context) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.resolved {
		return e.voice
	}

	e.voice = e.language // fallback: let espeak resolve the bare tag itself
	e.resolved = true

	out, err := e.run(ctx, nil, e.binary, "--voices="+e.language)
	if err != nil {
		return e.voice
	}
	if match := pickVoice(string(out), e.language); match != "" {
		e.voice = match
	}
	return e.voice
}

// pickVoice parses `espeak-ng --voices=<lang>` output and returns the best
// matching voice name, or "" when no row matches the language tag. Columns:
//
//	Pty Language Age/Gender VoiceName File Other Languages
func pickVoice(listing, language string) string {
	var first, mbrola string
	for i, line := range strings.Split(listing, "\n") {
		if i == 0 { // header row
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		lang, name, file := fields[1], fields[3], fields[4]
		if lang != language && !strings.HasPrefix(lang, language+"-") {
			continue
		}
		if first == "" {
			first = name
		}
		if mbrola == "" && (strings.HasPrefix(file, "mb/") || strings.Contains(name, "mbrola")) {
			mbrola = name
		}
	}
	if mbrola != "" {
		return mbrola
	}
	return first
}

var _ Strategy = (*EspeakEngine)(nil)
