// ximclient is a demo client for the XIM session manager.
//
// It connects to the X server, creates a small window, and routes every
// event through a xim.Session. Committed text and forwarded keys are logged
// as they come back from the input method. The demo runs against the
// in-process loopback engine from ximtest, which echoes forwarded keys as
// committed text; linking a wire-protocol engine means swapping the factory
// passed to xim.Create.
//
// The configuration file is watched while the client runs; editing the
// logging level takes effect immediately.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/fsnotify/fsnotify"

	"ximclient/internal/config"
	"ximclient/internal/logging"
	"ximclient/internal/xim"
	"ximclient/internal/xim/ximtest"
)

func main() {
	configPath := flag.String("config", defaultConfigPath(), "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, levelVar, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Engine diagnostics go through the process-wide sink.
	xim.SetLogger(func(msg string) {
		logger.Debug("engine: " + msg)
	})

	conn, err := xgb.NewConnDisplay(cfg.Display)
	if err != nil {
		logger.Error("failed to connect to X server", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	win, err := createWindow(conn)
	if err != nil {
		logger.Error("failed to create window", "error", err)
		os.Exit(1)
	}
	logger.Info("window created", "window", win)

	engine := newLoopbackEngine()
	session, err := xim.Create(conn, cfg.Screen, engine.Factory(), xim.Options{Name: cfg.InputMethod})
	if err != nil {
		logger.Error("input method unavailable, keys will be handled directly", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	session.SetCommitStringHandler(xim.CommitFunc(func(win xproto.Window, text string) {
		logger.Info("commit", "window", win, "text", text)
	}))
	session.SetForwardEventHandler(xim.ForwardFunc(func(ev xproto.KeyPressEvent) {
		logger.Info("forwarded key", "window", ev.Event, "keycode", ev.Detail)
	}))

	go watchConfig(*configPath, levelVar, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		session.Close()
		conn.Close()
	}()

	eventLoop(conn, session, logger)
}

func defaultConfigPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir + "/ximclient/ximclient.toml"
	}
	home, _ := os.UserHomeDir()
	return home + "/.config/ximclient/ximclient.toml"
}

// createWindow creates and maps a window that receives key events.
func createWindow(conn *xgb.Conn) (xproto.Window, error) {
	screen := xproto.Setup(conn).DefaultScreen(conn)
	win, err := xproto.NewWindowId(conn)
	if err != nil {
		return 0, err
	}
	err = xproto.CreateWindowChecked(conn, screen.RootDepth, win, screen.Root,
		0, 0, 480, 240, 0,
		xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwBackPixel|xproto.CwEventMask,
		[]uint32{
			screen.WhitePixel,
			xproto.EventMaskKeyPress |
				xproto.EventMaskKeyRelease |
				xproto.EventMaskStructureNotify,
		}).Check()
	if err != nil {
		return 0, err
	}
	if err := xproto.MapWindowChecked(conn, win).Check(); err != nil {
		return 0, err
	}
	return win, nil
}

// eventLoop pumps X events through the session until the connection closes
// or the window is destroyed.
func eventLoop(conn *xgb.Conn, session *xim.Session, logger *slog.Logger) {
	for {
		ev, xerr := conn.WaitForEvent()
		if ev == nil && xerr == nil {
			return
		}
		if xerr != nil {
			logger.Warn("X error", "error", xerr)
			continue
		}
		if _, ok := ev.(xproto.DestroyNotifyEvent); ok {
			return
		}
		if session.ProcessEvent(ev) {
			continue
		}
		// Not consumed by the input method: handle locally.
		if kp, ok := ev.(xproto.KeyPressEvent); ok {
			logger.Info("key handled locally", "window", kp.Event, "keycode", kp.Detail)
		}
	}
}

// newLoopbackEngine builds an in-process engine that acknowledges the
// open/create handshake synchronously and commits a marker string for every
// forwarded key, exercising the full session round trip without a server.
func newLoopbackEngine() *ximtest.Engine {
	engine := ximtest.NewEngine()
	engine.AutoAck = true
	engine.ForwardHook = func(ic xim.ContextID, ev xgb.Event) {
		if kp, ok := ev.(xproto.KeyPressEvent); ok {
			engine.Commit(ic, 0, []byte(fmt.Sprintf("<key %d>", kp.Detail)), nil)
		}
	}
	return engine
}

// watchConfig reapplies the logging level when the config file changes.
func watchConfig(path string, levelVar *slog.LevelVar, logger *slog.Logger) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("config watching unavailable", "error", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		logger.Debug("config file not watchable", "path", path, "error", err)
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := config.Load(path)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			level, err := logging.ParseLevel(cfg.Logging.Level)
			if err != nil {
				logger.Warn("config reload failed", "error", err)
				continue
			}
			levelVar.Set(level)
			logger.Info("log level updated", "level", cfg.Logging.Level)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
