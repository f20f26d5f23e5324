// Package main runs a scene server.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/stagecraft/scenecore/config"
	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/placement"
	"github.com/stagecraft/scenecore/web"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagBind     = "bind"
)

var logger = logging.NewLogger("scened")

var app = &cli.App{
	Name:            "scened",
	Usage:           "serve an editable 3D scene over WebSocket",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  flagLogLevel,
			Usage: "override the configured log level",
		},
		&cli.StringFlag{
			Name:  flagBind,
			Usage: "override the configured listen address",
		},
	},
	Action: runServer,
}

func main() {
	if err := run(os.Args); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunContext(ctx, args)
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Read(c.Context, path, logger); err != nil {
			return nil, err
		}
	} else {
		cfg = &config.Config{}
	}
	if level := c.String(flagLogLevel); level != "" {
		cfg.LogLevel = level
	}
	if bind := c.String(flagBind); bind != "" {
		cfg.Web.Bind = bind
	}
	if err := cfg.Ensure(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.Persistence.Type {
	case config.PersistenceMongo:
		mongoCfg, err := cfg.Persistence.MongoConfig()
		if err != nil {
			return nil, err
		}
		return persistence.NewMongoStore(ctx, mongoCfg, logger.Sublogger("mongo"))
	default:
		return persistence.NewMemoryStore(), nil
	}
}

func editorOptions(cfg *config.Config) editor.Options {
	return editor.Options{
		Tolerance:        cfg.Tolerance(),
		Ground:           placement.GroundPolicy{GroundY: cfg.GroundY},
		HistorySize:      cfg.HistorySize,
		ModelSaveDelay:   cfg.Debounce.Models,
		TextBoxSaveDelay: cfg.Debounce.TextBoxes,
	}
}

// populate places every configured asset and restores saved text boxes.
func populate(ctx context.Context, ed *editor.Editor, cfg *config.Config) error {
	for _, ac := range cfg.Assets {
		if _, err := ed.Place(ctx, ac.Placement()); err != nil {
			return errors.Wrapf(err, "failed to place %q", ac.ID)
		}
	}
	if err := ed.LoadTextBoxes(ctx); err != nil {
		return err
	}
	if pairs := ed.Overlapping(); len(pairs) > 0 {
		logger.Warnw("configured assets overlap", "pairs", pairs)
	}
	return nil
}

func runServer(c *cli.Context) (err error) {
	ctx := c.Context
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	db, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	nav := web.NewNavigation()
	ed := editor.New(db, cfg.AssetSource(), nav, editorOptions(cfg), logger.Sublogger("editor"))
	defer func() {
		err = multierr.Combine(err, ed.Close(context.Background()))
	}()
	if err := populate(ctx, ed, cfg); err != nil {
		return err
	}

	server := web.NewServer(ed, nav, web.Options{BroadcastInterval: cfg.Web.BroadcastInterval}, logger.Sublogger("web"))
	defer func() {
		err = multierr.Combine(err, server.Close())
	}()
	var watcher config.Watcher
	if cfg.ConfigFilePath != "" {
		if watcher, err = config.NewWatcher(ctx, cfg, logger.Sublogger("config")); err != nil {
			return err
		}
		defer func() {
			err = multierr.Combine(err, watcher.Close())
		}()
	}

	ln, err := net.Listen("tcp", cfg.Web.Bind)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.Web.Bind)
	}
	logger.Infow("serving", "address", ln.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ctx, ln)
	})
	if watcher != nil {
		g.Go(func() error {
			watchConfig(ctx, ed, cfg, watcher)
			return nil
		})
	}
	return g.Wait()
}

// watchConfig applies log level and asset geometry changes live. Everything else takes effect on restart.
func watchConfig(ctx context.Context, ed *editor.Editor, current *config.Config, watcher config.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case next := <-watcher.Config():
			if next.LogLevel != current.LogLevel {
				if level, err := next.Level(); err == nil {
					logger.SetLevel(level)
					logger.Infow("log level changed", "level", level.String())
				}
			}
			reloadAssets(ctx, ed, current, next)
			if diff := cmp.Diff(withoutLive(current), withoutLive(next)); diff != "" {
				logger.Infow("config changed, restart to apply", "diff", diff)
			}
			current = next
		}
	}
}

// reloadAssets swaps in the new geometry of every placed asset whose primitive changed.
func reloadAssets(ctx context.Context, ed *editor.Editor, current, next *config.Config) {
	before := map[string]editor.Primitive{}
	for _, ac := range current.Assets {
		before[ac.ID] = ac.Primitive()
	}
	ed.SetAssets(next.AssetSource())
	for _, ac := range next.Assets {
		old, ok := before[ac.ID]
		if !ok || old == ac.Primitive() {
			continue
		}
		if err := ed.ReloadModel(ctx, ac.ID, ac.ID); err != nil {
			logger.Warnw("failed to reload asset", "id", ac.ID, "error", err)
		}
	}
}

// withoutLive strips the settings watchConfig applies without a restart.
func withoutLive(cfg *config.Config) config.Config {
	out := *cfg
	out.LogLevel = ""
	out.Assets = make([]config.AssetConfig, len(cfg.Assets))
	for i, ac := range cfg.Assets {
		out.Assets[i] = config.AssetConfig{ID: ac.ID, Position: ac.Position, Rotation: ac.Rotation, Fallback: ac.Fallback}
	}
	return out
}
