package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gosuda/nestia-chat/chat"
	"github.com/gosuda/nestia-chat/internal/config"
	"github.com/gosuda/nestia-chat/internal/relay"
)

var rootCmd = &cobra.Command{
	Use:          "nestia-chat",
	Short:        "NES.tia terminal chat (posts over HTTP, listens on a WebSocket)",
	SilenceUsage: true,
	RunE:         runChat,
}

var (
	flagAPIURL      string
	flagWSURL       string
	flagEnvFiles    []string
	flagBackfill    bool
	flagAvatars     []string
	flagLogLevel    string
	flagLogFile     string
	flagSendTimeout time.Duration
	flagPongWait    time.Duration
	flagPlain       bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagAPIURL, "api-url", "", "relay REST base URL (overrides API_URL)")
	flags.StringVar(&flagWSURL, "ws-url", "", "relay WebSocket URL (overrides WEBSOCKET_URL)")
	flags.StringSliceVar(&flagEnvFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	flags.BoolVar(&flagBackfill, "backfill", false, "show the relay's recent messages on start")
	flags.StringSliceVar(&flagAvatars, "avatars", nil, "comma separated avatar set")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file instead of stderr")
	flags.DurationVar(&flagSendTimeout, "send-timeout", 0, "bound each outbound POST; 0 waits forever")
	flags.DurationVar(&flagPongWait, "pong-wait", 0, "drop the socket after this much relay silence; 0 disables")
	flags.BoolVar(&flagPlain, "plain", false, "line mode output even on a terminal")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute chat command")
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fullscreen := !flagPlain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	closeLog, err := setupLogging(cfg, fullscreen)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := relay.NewClient(cfg.APIURL, &http.Client{})
	if err != nil {
		return fmt.Errorf("new relay client: %w", err)
	}
	dialer := &relay.Dialer{URL: cfg.WebSocketURL, PongWait: cfg.PongWait}

	ui := &chatUI{avatars: chat.AvatarSet(cfg.Avatars), fullscreen: fullscreen}
	opts := []chat.Option{
		chat.WithSendTimeout(cfg.SendTimeout),
		chat.WithStateHook(ui.stateChanged),
	}
	if cfg.Backfill {
		opts = append(opts, chat.WithHistory(client))
	}
	view := chat.NewView(client, dialer, opts...)
	ui.view = view
	log.Info().Str("identity", view.Identity().String()).Str("api", cfg.APIURL).Str("ws", cfg.WebSocketURL).Msg("[chat] starting")

	if err := ui.open(); err != nil {
		return err
	}
	defer ui.close()

	if n, err := view.Backfill(ctx); err != nil {
		log.Warn().Err(err).Msg("[chat] backfill failed")
	} else if n > 0 {
		log.Info().Msgf("[chat] backfilled %d messages", n)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	runErr := make(chan error, 1)
	go func() { runErr <- view.Run(runCtx) }()
	defer func() {
		cancelRun()
		view.Wait()
		log.Info().Msg("[chat] shutdown complete")
	}()

	return ui.loop(ctx, runErr)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadDotEnv(flagEnvFiles...); err != nil {
		return nil, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("api-url") {
		cfg.APIURL = flagAPIURL
	}
	if flags.Changed("ws-url") {
		cfg.WebSocketURL = flagWSURL
	}
	if flags.Changed("backfill") {
		cfg.Backfill = flagBackfill
	}
	if flags.Changed("avatars") {
		cfg.Avatars = flagAvatars
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-file") {
		cfg.LogFile = flagLogFile
	}
	if flags.Changed("send-timeout") {
		cfg.SendTimeout = flagSendTimeout
	}
	if flags.Changed("pong-wait") {
		cfg.PongWait = flagPongWait
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging points the global logger at stderr, or at the log file.
// A full-screen session without a log file discards logs so they never
// tear the frame.
func setupLogging(cfg *config.Config, fullscreen bool) (func(), error) {
	zerolog.SetGlobalLevel(cfg.Level())

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	closeFn := func() {}
	switch {
	case cfg.LogFile != "":
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	case fullscreen:
		out = io.Discard
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closeFn, nil
}

// inboundDone turns the result of View.Run into the command's result.
// A lost connection keeps the session alive without remote messages; a
// failed first dial ends it.
func inboundDone(err error) (fatal error) {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chat.ErrConnectionLost):
		log.Warn().Err(err).Msg("[chat] live updates stopped")
		return nil
	default:
		return err
	}
}
