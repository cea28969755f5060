// Command cadenza turns narration scripts into speech and holds live voice
// conversations from the terminal.
//
// Batch mode (default) reads a script file, synthesises it segment by
// segment, and writes a WAV file. Live mode (-live) streams raw PCM from
// stdin (16 kHz, s16le, mono) to a realtime voice model, prints the running
// transcript, and optionally writes the assistant's collected speech to a
// WAV file on exit.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talandis/cadenza/internal/config"
	"github.com/talandis/cadenza/internal/observe"
	"github.com/talandis/cadenza/internal/studio"
	"github.com/talandis/cadenza/pkg/live"
	livegemini "github.com/talandis/cadenza/pkg/live/gemini"
	"github.com/talandis/cadenza/pkg/pcm"
	"github.com/talandis/cadenza/pkg/playback"
	"github.com/talandis/cadenza/pkg/synth"
	"github.com/talandis/cadenza/pkg/synth/gemini"
	"github.com/talandis/cadenza/pkg/synth/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	scriptPath := flag.String("script", "", "path to the script text file ('-' for stdin)")
	outPath := flag.String("out", "output.wav", "path the generated WAV file is written to")
	liveMode := flag.Bool("live", false, "start a live voice session reading PCM from stdin")
	liveOutPath := flag.String("live-out", "", "optional WAV path for the assistant's collected speech")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "cadenza: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "cadenza: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	// ── Observability ─────────────────────────────────────────────────────────
	shutdown, err := observe.InitProvider(context.Background(), observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	if addr := cfg.Server.MetricsAddr; addr != "" {
		go serveMetrics(addr)
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *liveMode {
		return runLive(ctx, cfg, reg, *liveOutPath)
	}
	return runBatch(ctx, cfg, reg, *scriptPath, *outPath)
}

// ── Batch mode ──────────────────────────────────────────────────────────────────

func runBatch(ctx context.Context, cfg *config.Config, reg *config.Registry, scriptPath, outPath string) int {
	if scriptPath == "" {
		fmt.Fprintln(os.Stderr, "cadenza: -script is required (use '-' for stdin)")
		return 2
	}
	text, err := readScript(scriptPath)
	if err != nil {
		slog.Error("failed to read script", "path", scriptPath, "err", err)
		return 1
	}

	name := cfg.Providers.Synthesis.Name
	provider, err := reg.CreateSynthesis(cfg.Providers.Synthesis)
	if err != nil {
		slog.Error("failed to create synthesis provider", "name", name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "synthesis", "name", name)

	voiceCfg := synth.Config{
		Voice: cfg.Synthesis.Voice,
		Style: cfg.Synthesis.Style,
	}
	for _, sp := range cfg.Synthesis.Speakers {
		voiceCfg.Speakers = append(voiceCfg.Speakers, synth.Speaker{Name: sp.Name, VoiceID: sp.VoiceID})
	}

	var opts []studio.Option
	if cfg.Synthesis.Concurrency > 0 {
		opts = append(opts, studio.WithConcurrency(cfg.Synthesis.Concurrency))
	}
	st := studio.New(name, provider, opts...)

	chunks, err := st.Generate(ctx, text, voiceCfg, func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rsynthesising %d/%d", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		slog.Error("generation failed", "err", err)
		return 1
	}

	wav, err := st.ExportWAV(chunks)
	if err != nil {
		slog.Error("export failed", "err", err)
		return 1
	}
	if err := os.WriteFile(outPath, wav, 0o644); err != nil {
		slog.Error("failed to write output", "path", outPath, "err", err)
		return 1
	}
	slog.Info("wrote output", "path", outPath, "chunks", len(chunks), "bytes", len(wav))
	return 0
}

func readScript(path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// ── Live mode ───────────────────────────────────────────────────────────────────

func runLive(ctx context.Context, cfg *config.Config, reg *config.Registry, liveOutPath string) int {
	name := cfg.Providers.Live.Name
	dialer, err := reg.CreateLive(cfg.Providers.Live)
	if err != nil {
		slog.Error("failed to create live dialer", "name", name, "err", err)
		return 1
	}
	slog.Info("provider created", "kind", "live", "name", name)

	var micOpts []live.MicOption
	if cfg.Live.FrameBytes > 0 {
		micOpts = append(micOpts, live.WithFrameBytes(cfg.Live.FrameBytes))
	}
	mic := live.NewReaderMicrophone(os.Stdin, micOpts...)

	var mgrOpts []live.Option
	if cfg.Live.OutputSampleRate > 0 {
		mgrOpts = append(mgrOpts, live.WithOutputSampleRate(cfg.Live.OutputSampleRate))
	}
	mgr := live.NewManager(dialer, mic, mgrOpts...)

	metrics := observe.DefaultMetrics()
	sink := &playback.CollectorSink{}
	queue := playback.NewQueue(sink, playback.NewMonotonicClock())

	done := make(chan struct{})
	started := time.Now()
	printed := 0
	err = mgr.Start(ctx, live.SessionConfig{
		Voice:        cfg.Live.Voice,
		Instructions: cfg.Live.Instructions,
	}, live.Callbacks{
		OnTranscript: func(input, output string) {
			fmt.Fprintf(os.Stderr, "\ryou: %s | assistant: %s", input, output)
		},
		OnTurns: func(turns []live.Turn) {
			fmt.Fprintln(os.Stderr)
			for _, turn := range turns[printed:] {
				fmt.Printf("[%s] %s\n", turn.Speaker, turn.Text)
				metrics.RecordTurn(ctx, string(turn.Speaker))
			}
			printed = len(turns)
		},
		OnAudio: func(buf *pcm.Buffer) {
			metrics.AudioChunks.Add(ctx, 1)
			if _, err := queue.Push(buf); err != nil {
				slog.Warn("failed to schedule audio chunk", "err", err)
			}
		},
		OnError: func(err error) {
			slog.Error("live session error", "err", err)
		},
		OnClose: func() {
			close(done)
		},
	})
	if err != nil {
		slog.Error("failed to start live session", "err", err)
		return 1
	}
	metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("live session started, press Ctrl+C to hang up")

	select {
	case <-ctx.Done():
	case <-done:
	}
	mgr.Stop()
	metrics.ActiveSessions.Add(ctx, -1)
	metrics.LiveSessionDuration.Record(context.Background(), time.Since(started).Seconds())
	slog.Info("live session ended", "turns", len(mgr.Turns()), "elapsed", time.Since(started))

	if liveOutPath != "" {
		if code := writeCollected(sink, liveOutPath); code != 0 {
			return code
		}
	}
	return 0
}

// writeCollected concatenates the assistant audio retained by sink and
// writes it as a WAV file.
func writeCollected(sink *playback.CollectorSink, path string) int {
	bufs := sink.Buffers()
	if len(bufs) == 0 {
		slog.Info("no assistant audio collected, skipping WAV export")
		return 0
	}
	combined, err := pcm.Combine(bufs)
	if err != nil {
		slog.Error("failed to combine collected audio", "err", err)
		return 1
	}
	if err := os.WriteFile(path, pcm.EncodeWAV(combined), 0o644); err != nil {
		slog.Error("failed to write collected audio", "path", path, "err", err)
		return 1
	}
	slog.Info("wrote collected audio", "path", path, "duration", combined.Duration())
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Synthesis ─────────────────────────────────────────────────────────────

	reg.RegisterSynthesis("gemini", func(entry config.ProviderEntry) (synth.Provider, error) {
		var opts []gemini.Option
		if entry.Model != "" {
			opts = append(opts, gemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(entry.BaseURL))
		}
		return gemini.New(entry.APIKey, opts...), nil
	})

	reg.RegisterSynthesis("openai", func(entry config.ProviderEntry) (synth.Provider, error) {
		var opts []openai.Option
		if entry.Model != "" {
			opts = append(opts, openai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, opts...)
	})

	// ── Live ──────────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Dialer, error) {
		var opts []livegemini.Option
		if entry.Model != "" {
			opts = append(opts, livegemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, livegemini.WithBaseURL(entry.BaseURL))
		}
		return livegemini.New(entry.APIKey, opts...), nil
	})
}

// ── Metrics endpoint ────────────────────────────────────────────────────────────

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	slog.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Warn("metrics endpoint stopped", "err", err)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
