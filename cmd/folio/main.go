// Command folio manages a folio store: schema creation, markdown import,
// publishing and listing.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/folio/internal/config"
	"github.com/debemdeboas/folio/internal/db"
	"github.com/debemdeboas/folio/internal/logger"
	"github.com/debemdeboas/folio/internal/render"
	"github.com/debemdeboas/folio/internal/repository"
)

const usage = `usage: folio [-config file] <command> [flags]

commands:
  init                          create the database schema
  import -path dir [-publish]   import markdown files as posts
  publish -id post (-url u | -group g [-after page])
                                publish the newest draft of a post
  unpublish -id post            take a post offline
  delete -id post               delete a post with its drafts and images
  pages                         list static groups and published posts
  config [file|-]               write an example configuration
  css [file|-]                  write the syntax highlighting stylesheet
`

// app holds what the commands share once the configuration is loaded.
type app struct {
	cfg      *config.Config
	log      zerolog.Logger
	db       db.DB
	store    *repository.PostStore
	renderer *render.Renderer
	out      io.Writer
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file loaded")
	}

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	flags := flag.NewFlagSet("folio", flag.ContinueOnError)
	flags.SetOutput(out)
	flags.Usage = func() { fmt.Fprint(out, usage) }
	configPath := flags.String("config", "config.yaml", "path to the configuration file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	rest := flags.Args()
	if len(rest) == 0 {
		flags.Usage()
		return fmt.Errorf("missing command")
	}
	command, cmdArgs := rest[0], rest[1:]

	// config needs no store and must work without a valid file.
	if command == "config" {
		return writeExampleConfig(cmdArgs, out)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf(config.ErrLoadConfigFmt, err)
	}

	a, err := open(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer a.close()

	switch command {
	case "init":
		a.log.Info().Str("path", cfg.Database.Path).Msg("Schema ready")
		return nil
	case "import":
		return a.importCommand(ctx, cmdArgs)
	case "publish":
		return a.publishCommand(ctx, cmdArgs)
	case "unpublish":
		return a.unpublishCommand(ctx, cmdArgs)
	case "delete":
		return a.deleteCommand(ctx, cmdArgs)
	case "pages":
		return a.pagesCommand(ctx)
	case "css":
		return writeOutput(cmdArgs, "syntax.css", a.renderer.SyntaxCSS(), out)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

// open wires the logger, database, blob store, store and renderer from cfg.
func open(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	log := logger.New(cfg.Logging.Level)
	config.SetLogger(logger.Component(log, "config"))
	db.SetLogger(logger.Component(log, "db"))
	repository.SetLogger(logger.Component(log, "repository"))
	render.SetLogger(logger.Component(log, "render"))

	database := db.NewSQLite(db.Options{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		BusyTimeout:  cfg.Database.BusyTimeout,
	})
	if err := database.InitDB(); err != nil {
		return nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
	}

	opts, err := repository.OptionsFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf(config.ErrOpenStoreFmt, err)
	}
	if cfg.Images.Backend == config.ImageBackendS3 {
		blobs, err := repository.NewS3BlobStore(ctx, cfg.Images.S3)
		if err != nil {
			database.Close()
			return nil, fmt.Errorf(config.ErrOpenStoreFmt, err)
		}
		opts.Blobs = blobs
	}

	renderer, err := render.FromConfig(cfg.Content)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf(config.ErrOpenStoreFmt, err)
	}

	return &app{
		cfg:      cfg,
		log:      log,
		db:       database,
		store:    repository.NewPostStore(database, opts),
		renderer: renderer,
		out:      out,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Error().Err(err).Msg("Error closing database")
	}
}
