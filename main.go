package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"SharedBoard/internal/config"
	"SharedBoard/internal/engine"
	"SharedBoard/internal/export"
	sbnet "SharedBoard/internal/net"
	"SharedBoard/internal/relay"
	"SharedBoard/internal/ui"
)

func main() {
	args := os.Args[1:]
	var err error
	switch {
	case len(args) > 0 && args[0] == "relay":
		err = runRelay(args[1:])
	case len(args) > 0 && args[0] == "export":
		err = runExport(args[1:])
	default:
		err = runClient(args)
	}
	if err != nil && !errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "sharedboard:", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}

func runRelay(args []string) error {
	fs := pflag.NewFlagSet("sharedboard relay", pflag.ContinueOnError)
	config.AddRelayFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.FromFlags(fs)
	if err != nil {
		return err
	}
	if err := cfg.ValidateRelay(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ln, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		return err
	}
	return serveRelay(ctx, cfg.Relay, ln, logger)
}

// serveRelay runs a relay on ln until ctx is done.
func serveRelay(ctx context.Context, cfg config.RelayConfig, ln net.Listener, logger *slog.Logger) error {
	bus := relay.LocalBus()
	if cfg.RedisAddr != "" {
		rb, err := relay.NewRedisBus(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.ChannelPrefix, logger)
		if err != nil {
			ln.Close()
			return err
		}
		bus = rb
	}

	if cfg.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		server, err := sbnet.Advertise(port)
		if err != nil {
			logger.Warn("mDNS advertising disabled", "error", err)
		} else {
			defer server.Shutdown()
			logger.Info("advertising relay over mDNS", "service", sbnet.ServiceType, "port", port)
		}
	}

	m := relay.NewManager(bus, logger)
	if err := m.Serve(ctx, ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runClient(args []string) error {
	fs := pflag.NewFlagSet("sharedboard", pflag.ContinueOnError)
	config.AddClientFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sharedboard [%[1]s://host:port/room] [flags]\n       sharedboard relay [flags]\n       sharedboard export %[1]s://host:port/room [-o board.pdf]\n\n", sbnet.LinkScheme)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.FromFlags(fs)
	if err != nil {
		return err
	}
	if rest := fs.Args(); len(rest) > 0 && strings.HasPrefix(rest[0], sbnet.LinkScheme+"://") {
		link, err := sbnet.ParseLink(rest[0])
		if err != nil {
			return err
		}
		cfg.Client.Relay, cfg.Client.Room = link.Addr, link.RoomID
	}
	if err := cfg.ValidateClient(); err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without an address, look for a relay nearby and host one if there is
	// none.
	var shareLink string
	if cfg.Client.Relay == "" {
		addr, err := sbnet.Discover(cfg.Client.DiscoverTimeout)
		switch {
		case err == nil:
			logger.Info("found relay", "addr", addr)
			cfg.Client.Relay = addr
		case errors.Is(err, sbnet.ErrNoRelay):
			addr, link, err := hostRelay(ctx, cfg, logger)
			if err != nil {
				return err
			}
			cfg.Client.Relay, shareLink = addr, link
		default:
			return err
		}
	}
	link := sbnet.Link{Addr: cfg.Client.Relay, RoomID: cfg.Client.Room}
	if shareLink == "" {
		shareLink = link.String()
	}

	app := ui.NewApp("SharedBoard - "+cfg.Client.Room, shareLink, cfg.Client.Color, cfg.Client.Width, logger)
	client := sbnet.NewClient(sbnet.SessionConfig{
		URL:              link.WebSocketURL(),
		RoomID:           cfg.Client.Room,
		Username:         cfg.Client.Username,
		Color:            cfg.Client.Color,
		PresenceTTL:      cfg.Client.PresenceTTL,
		Reconnect:        cfg.Client.Reconnect,
		MaxReconnectTime: cfg.Client.MaxReconnectTime,
	}, logger,
		engine.OnChange(app.Changed),
		engine.OnStatus(func(s engine.Status, err error) {
			switch {
			case s == engine.StatusReady:
				app.SetStatus(fmt.Sprintf("Connected to %s as %s", cfg.Client.Room, cfg.Client.Username))
			case err != nil:
				app.SetStatus(fmt.Sprintf("%s: %v", s, err))
			default:
				app.SetStatus(s.String())
			}
		}),
	)
	client.OnEngine = func(e *engine.Engine) { app.Attach(e) }

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	app.OnClose(cancel)
	go func() {
		if err := client.Run(ctx); err != nil {
			logger.Error("session ended", "error", err)
			app.SetStatus("Disconnected: " + err.Error())
		}
	}()
	go func() {
		<-ctx.Done()
		app.Quit()
	}()

	app.Run()
	return nil
}

// runExport writes the relay's current copy of a room to a PDF without
// joining the room.
func runExport(args []string) error {
	fs := pflag.NewFlagSet("sharedboard export", pflag.ContinueOnError)
	output := fs.StringP("output", "o", "board.pdf", "PDF file to write")
	timeout := fs.Duration("timeout", 10*time.Second, "give up on the relay after this long")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sharedboard export %s://host:port/room [flags]\n\n", sbnet.LinkScheme)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("export needs exactly one share link")
	}
	link, err := sbnet.ParseLink(fs.Arg(0))
	if err != nil {
		return err
	}
	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	strokes, err := sbnet.FetchStrokes(ctx, link)
	if err != nil {
		return err
	}
	if err := export.PDF(*output, strokes); err != nil {
		return fmt.Errorf("export %s: %w", *output, err)
	}
	logger.Info("exported board", "room", link.RoomID, "strokes", len(strokes), "file", *output)
	return nil
}

// hostRelay starts a relay inside this process, the way the first
// participant on a network hosts the board for the rest.
func hostRelay(ctx context.Context, cfg *config.Config, logger *slog.Logger) (addr, shareLink string, err error) {
	ln, err := net.Listen("tcp", cfg.Relay.Listen)
	if err != nil {
		return "", "", fmt.Errorf("host relay: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	link, err := sbnet.ShareLink(port, cfg.Client.Room)
	if err != nil {
		ln.Close()
		return "", "", err
	}

	relayCfg := cfg.Relay
	relayCfg.RedisAddr = ""
	go func() {
		if err := serveRelay(ctx, relayCfg, ln, logger.With("component", "relay")); err != nil {
			logger.Error("hosted relay stopped", "error", err)
		}
	}()

	logger.Info("hosting relay", "share_link", link.String())
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), link.String(), nil
}
