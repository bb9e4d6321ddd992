package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/aozoraconv/internal"
	pkgconfig "github.com/starford/aozoraconv/pkg/config"
)

var version = "dev"

// loadConfig reads the config file, falling back to defaults when it does
// not exist, and applies command line overrides.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if root := cmd.Args().Get(0); root != "" {
		cfg.Corpus.Root = root
	}
	if out := cmd.Args().Get(1); out != "" {
		cfg.Output.Path = out
	}
	if cmd.IsSet("workers") {
		cfg.Batch.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("force") {
		cfg.Batch.Force = cmd.Bool("force")
	}
	if cmd.IsSet("tables") {
		cfg.Tables.Path = cmd.String("tables")
	}
	if cmd.IsSet("db") {
		cfg.SQLite.Path = cmd.String("db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func action(run func(context.Context, ...internal.Option) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		opts := []internal.Option{
			internal.WithConfig(cfg),
			internal.WithVersion(version),
		}

		if err := run(ctx, opts...); err != nil {
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

// commonFlags returns fresh flag values; cli keeps parse state in them, so
// commands must not share instances.
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"w"},
			Usage:   "Number of documents converted concurrently",
			Sources: cli.EnvVars("AOZORACONV_WORKERS"),
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Reconvert documents whose archive is unchanged",
			Sources: cli.EnvVars("AOZORACONV_FORCE"),
		},
		&cli.StringFlag{
			Name:    "tables",
			Usage:   "JSON file extending the built-in character tables",
			Sources: cli.EnvVars("AOZORACONV_TABLES"),
		},
		&cli.StringFlag{
			Name:    "db",
			Usage:   "Path to the SQLite catalog",
			Sources: cli.EnvVars("AOZORACONV_DB"),
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:      "aozoraconv",
		Usage:     "Convert the Aozora Bunko ruby-txt corpus into structured JSON and a searchable catalog",
		Version:   version,
		ArgsUsage: "[corpus-root] [output]",
		Flags:     commonFlags(),
		Action:    action(internal.Run),
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Convert every eligible work once and exit",
				ArgsUsage: "<corpus-root> <output>",
				Flags:     commonFlags(),
				Action:    action(internal.Run),
			},
			{
				Name:      "serve",
				Usage:     "Convert, watch the corpus for changes and serve the HTTP API",
				ArgsUsage: "[corpus-root] [output]",
				Flags:     commonFlags(),
				Action:    action(internal.Serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve the converted catalog to MCP clients on stdio",
				Flags:  commonFlags(),
				Action: action(internal.ServeMCP),
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
