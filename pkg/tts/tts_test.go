package tts_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/blinkwatch/pkg/tts"
)

// recordingPlayer captures what would have been played.
type recordingPlayer struct {
	mu     sync.Mutex
	played [][]byte
	err    error
}

func (p *recordingPlayer) Play(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.played = append(p.played, append([]byte(nil), data...))
	return p.err
}

func (p *recordingPlayer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.played)
}

func TestMock(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	if err := mock.Speak(ctx, "Wake up!"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.Speak(ctx, ""); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
	mock.Close()

	if got := mock.Spoken(); len(got) != 2 || got[0] != "Wake up!" {
		t.Errorf("Spoken = %q", got)
	}
	if mock.CallCount("Close") != 1 {
		t.Errorf("expected 1 Close call, got %d", mock.CallCount("Close"))
	}

	mock.Reset()
	if len(mock.Calls()) != 0 {
		t.Error("expected calls to be cleared")
	}
}

func TestMockWithLatency(t *testing.T) {
	mock := tts.WithLatency(tts.NewMock(), 50*time.Millisecond)

	t.Run("Speak waits", func(t *testing.T) {
		start := time.Now()
		if err := mock.Speak(context.Background(), "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
			t.Errorf("expected at least 50ms latency, got %v", elapsed)
		}
	})

	t.Run("Context cancellation works", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		if err := mock.Speak(ctx, "Hello"); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline error, got %v", err)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("NewChain requires speakers", func(t *testing.T) {
		if _, err := tts.NewChain(); err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("First speaker wins", func(t *testing.T) {
		first, second := tts.NewMock(), tts.NewMock()
		chain, _ := tts.NewChain(first, second)

		if err := chain.Speak(ctx, "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.CallCount("Speak") != 1 || second.CallCount("Speak") != 0 {
			t.Error("expected only the first speaker to be called")
		}
	})

	t.Run("Fallback on failure", func(t *testing.T) {
		failing := tts.WithError(errors.New("no network"))
		fallback := tts.NewMock()
		chain, _ := tts.NewChain(failing, fallback)

		if err := chain.Speak(ctx, "Hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if fallback.CallCount("Speak") != 1 {
			t.Error("expected fallback to speak")
		}
	})

	t.Run("All speakers fail", func(t *testing.T) {
		errOne := errors.New("fail 1")
		chain, _ := tts.NewChain(tts.WithError(errOne), tts.WithError(errors.New("fail 2")))

		err := chain.Speak(ctx, "Hello")
		var ce *tts.ChainError
		if !errors.As(err, &ce) || len(ce.Errors) != 2 {
			t.Fatalf("expected ChainError with 2 errors, got %v", err)
		}
		if !errors.Is(err, errOne) {
			t.Error("expected ChainError to expose the first failure")
		}
	})

	t.Run("Name lists speakers", func(t *testing.T) {
		chain, _ := tts.NewChain(&tts.Mock{MockName: "a"}, &tts.Mock{MockName: "b"})
		if chain.Name() != "chain(a,b)" {
			t.Errorf("Name = %q", chain.Name())
		}
	})

	t.Run("Close closes all", func(t *testing.T) {
		a, b := tts.NewMock(), tts.NewMock()
		chain, _ := tts.NewChain(a, b)
		chain.Close()
		if a.CallCount("Close") != 1 || b.CallCount("Close") != 1 {
			t.Error("expected both speakers closed")
		}
	})
}

func TestFunctionalOptions(t *testing.T) {
	player := &recordingPlayer{}
	cfg := tts.DefaultConfig()
	cfg.Apply(
		tts.WithVoice("test-voice"),
		tts.WithModel("test-model"),
		tts.WithTimeout(5*time.Second),
		tts.WithRetry(4, time.Second),
		tts.WithPlayer(player),
	)

	if cfg.Voice != "test-voice" || cfg.Model != "test-model" {
		t.Errorf("voice/model = %s/%s", cfg.Voice, cfg.Model)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
	}
	if cfg.Retries != 4 || cfg.RetryWait != time.Second {
		t.Errorf("retry = %d/%v", cfg.Retries, cfg.RetryWait)
	}
	if cfg.Player != player {
		t.Error("player not set")
	}
}

func TestConfigValidation(t *testing.T) {
	cfg := tts.DefaultConfig()
	if err := cfg.Validate(); err != tts.ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	cfg.Key = "test-key"
	if err := cfg.Validate(); err != tts.ErrNoVoiceID {
		t.Errorf("expected ErrNoVoiceID, got %v", err)
	}

	cfg.Voice = "voice"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		code      int
		retryable bool
		unauth    bool
	}{
		{400, false, false},
		{401, false, true},
		{429, true, false},
		{500, true, false},
		{503, true, false},
	}
	for _, tc := range tests {
		err := &tts.APIError{StatusCode: tc.code}
		if err.IsRetryable() != tc.retryable {
			t.Errorf("%d: IsRetryable = %v", tc.code, err.IsRetryable())
		}
		if err.IsUnauthorized() != tc.unauth {
			t.Errorf("%d: IsUnauthorized = %v", tc.code, err.IsUnauthorized())
		}
	}

	err := &tts.APIError{StatusCode: 400, Message: "bad request", Code: "invalid_input", Provider: "openai"}
	if err.Error() != "tts [openai]: API error 400 (invalid_input): bad request" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
}

func TestProviderError(t *testing.T) {
	inner := errors.New("connection failed")
	err := tts.WrapError("openai", inner)

	if err.Error() != "tts [openai]: connection failed" {
		t.Errorf("unexpected error message: %s", err.Error())
	}
	var pe *tts.ProviderError
	if !errors.As(err, &pe) || pe.Provider != "openai" {
		t.Errorf("expected ProviderError for openai, got %v", err)
	}
	if !errors.Is(err, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if tts.WrapError("x", nil) != nil {
		t.Error("WrapError(nil) should be nil")
	}
}

func TestOpenAI_Speak(t *testing.T) {
	var got struct {
		Model string `json:"model"`
		Voice string `json:"voice"`
		Input string `json:"input"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" || r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3fake"))
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	o, err := tts.NewOpenAI(
		tts.WithAPIKey("sk-test"),
		tts.WithBaseURL(srv.URL),
		tts.WithVoice(tts.VoiceNova),
		tts.WithPlayer(player),
	)
	if err != nil {
		t.Fatalf("NewOpenAI failed: %v", err)
	}
	defer o.Close()

	if err := o.Speak(context.Background(), "Wake up!"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}

	if got.Input != "Wake up!" || got.Voice != tts.VoiceNova || got.Model != tts.ModelTTS1 {
		t.Errorf("request = %+v", got)
	}
	if player.count() != 1 || string(player.played[0]) != "ID3fake" {
		t.Errorf("played = %q", player.played)
	}
}

func TestOpenAI_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key","code":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	player := &recordingPlayer{}
	o, _ := tts.NewOpenAI(tts.WithAPIKey("bad"), tts.WithBaseURL(srv.URL), tts.WithPlayer(player), tts.WithRetry(0, 0))

	err := o.Speak(context.Background(), "Hello")
	var apiErr *tts.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.IsUnauthorized() || apiErr.Message != "bad key" || apiErr.Code != "invalid_api_key" {
		t.Errorf("unexpected APIError %+v", apiErr)
	}
	if player.count() != 0 {
		t.Error("nothing should play on error")
	}

	if _, err := tts.NewOpenAI(); err != tts.ErrNoAPIKey {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}

	noPlayer, _ := tts.NewOpenAI(tts.WithAPIKey("k"), tts.WithBaseURL(srv.URL))
	if err := noPlayer.Speak(context.Background(), "Hello"); !errors.Is(err, tts.ErrNoPlayer) {
		t.Errorf("expected ErrNoPlayer, got %v", err)
	}
}

func TestElevenLabs_Synthesize(t *testing.T) {
	var path, key, format string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("xi-api-key")
		format = r.URL.Query().Get("output_format")
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("mp3"))
	}))
	defer srv.Close()

	e, err := tts.NewElevenLabs(tts.WithAPIKey("xi"), tts.WithVoice("rachel"), tts.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("NewElevenLabs failed: %v", err)
	}

	res, err := e.Synthesize(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(res.Audio) != "mp3" || res.CharCount != 5 {
		t.Errorf("result = %+v", res)
	}
	if path != "/text-to-speech/"+tts.ResolveElevenLabsVoice("rachel") || key != "xi" || format == "" {
		t.Errorf("request path=%s key=%s format=%s", path, key, format)
	}
}

func TestElevenLabs_ErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"object detail", `{"detail":{"status":"quota_exceeded","message":"out of credits"}}`, "out of credits"},
		{"string detail", `{"detail":"voice not found"}`, "voice not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			e, _ := tts.NewElevenLabs(tts.WithAPIKey("xi"), tts.WithVoice("v"), tts.WithBaseURL(srv.URL))
			_, err := e.Synthesize(context.Background(), "Hello")
			var apiErr *tts.APIError
			if !errors.As(err, &apiErr) || apiErr.Message != tc.want {
				t.Errorf("got %v, want message %q", err, tc.want)
			}
		})
	}
}

func TestCommand_Speak(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out := filepath.Join(t.TempDir(), "spoken.txt")

	// sh -c script $0: the spoken text arrives as $0
	c, err := tts.NewCommand([]string{"sh", "-c", `printf '%s' "$0" > ` + out}, nil)
	if err != nil {
		t.Fatalf("NewCommand failed: %v", err)
	}

	if err := c.Speak(context.Background(), "Wake up!"); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	got, _ := os.ReadFile(out)
	if string(got) != "Wake up!" {
		t.Errorf("engine received %q", got)
	}

	if err := c.Speak(context.Background(), ""); !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestNewCommand_MissingEngine(t *testing.T) {
	_, err := tts.NewCommand([]string{"definitely-not-a-speech-engine"}, nil)
	if !errors.Is(err, tts.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestNew(t *testing.T) {
	t.Run("skips engines without keys", func(t *testing.T) {
		s := tts.DefaultSettings()
		s.Engines = []string{tts.EngineOpenAI, tts.EngineElevenLabs}
		if _, err := tts.New(s, &recordingPlayer{}, nil); err != tts.ErrProviderUnavailable {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("single engine is returned directly", func(t *testing.T) {
		s := tts.DefaultSettings()
		s.Engines = []string{tts.EngineOpenAI}
		s.OpenAIKey = "k"
		sp, err := tts.New(s, &recordingPlayer{}, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if sp.Name() != tts.EngineOpenAI {
			t.Errorf("Name = %q", sp.Name())
		}
	})

	t.Run("several engines form a chain", func(t *testing.T) {
		s := tts.DefaultSettings()
		s.Engines = []string{tts.EngineOpenAI, tts.EngineElevenLabs, "bogus"}
		s.OpenAIKey = "k"
		s.ElevenLabsKey = "k"
		sp, err := tts.New(s, &recordingPlayer{}, nil)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if sp.Name() != "chain(openai,elevenlabs)" {
			t.Errorf("Name = %q", sp.Name())
		}
	})
}
