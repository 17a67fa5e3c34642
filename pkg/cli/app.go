package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	urfave "github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/churnscope/churnctl/pkg/config"
	"github.com/churnscope/churnctl/pkg/logging"
	"github.com/churnscope/churnctl/pkg/store"
)

const (
	dirMode      = 0700
	appConfigKey = "app-config"

	formatJSON = "json"
	formatYAML = "yaml"
)

var (
	version = "v0.0.1-default"
	commit  = ""
	date    = ""

	outputFormat = formatJSON

	debugFlag = &urfave.BoolFlag{
		Name:  "debug",
		Usage: "Prints verbose logs (optional, default: false)",
	}

	dbFilePathFlag = &urfave.StringFlag{
		Name:  "db",
		Usage: "Path to the local Sqlite database file",
	}

	formatFlag = &urfave.StringFlag{
		Name:  "format",
		Usage: "Output format [json, yaml]",
		Value: formatJSON,
	}

	modelFileFlag = &urfave.StringFlag{
		Name:  "model",
		Usage: "Path to the model artifact (overrides config)",
	}
)

// Execute creates and runs the CLI application.
func Execute() {
	initLogging(false)

	app := newApp()
	if err := app.Run(os.Args); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

type appConfig struct {
	Home   string
	DBPath string
	Debug  bool
	Conf   *config.Config
	Local  *store.SQLite
}

func getConfig(c *urfave.Context) *appConfig {
	return c.App.Metadata[appConfigKey].(*appConfig)
}

// dataStore returns the customer/prediction store the command should
// use: Postgres when enabled in config, the local SQLite file otherwise.
// The returned closer is a no-op for the shared local store.
func (a *appConfig) dataStore(ctx context.Context) (store.Store, func(), error) {
	if !a.Conf.Postgres.Enabled {
		return a.Local, func() {}, nil
	}

	password, err := getDBPassword()
	if err != nil {
		return nil, nil, fmt.Errorf("getting database password: %w", err)
	}

	pg, err := store.OpenPostgres(ctx, a.Conf.Postgres.Conn(password))
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to Postgres: %w", err)
	}
	return pg, func() { pg.Close() }, nil
}

func newApp() *urfave.App {
	return &urfave.App{
		Name:                 "churnctl",
		Version:              fmt.Sprintf("%s (%s - %s)", version, commit, date),
		Compiled:             time.Now(),
		EnableBashCompletion: true,
		HideHelpCommand:      true,
		Usage:                "CLI for customer churn-risk scoring",
		Flags: []urfave.Flag{
			debugFlag,
			dbFilePathFlag,
			formatFlag,
		},
		Commands: []*urfave.Command{
			authCmd,
			trainCmd,
			scoreCmd,
			customersCmd,
			predictionsCmd,
			resetCmd,
			serverCmd,
		},
		Before: func(c *urfave.Context) error {
			if c.Bool(debugFlag.Name) {
				initLogging(true)
			}

			f := c.String(formatFlag.Name)
			if f == formatYAML || f == "yml" {
				outputFormat = formatYAML
			}

			home := getHomeDir()

			dbPath := c.String(dbFilePathFlag.Name)
			if dbPath == "" {
				dbPath = path.Join(home, store.DataFileName)
			}

			if err := store.Init(dbPath); err != nil {
				return fmt.Errorf("initializing database: %w", err)
			}

			local, err := store.OpenSQLite(dbPath)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}

			conf, err := config.ReadOrCreate(home)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			c.App.Metadata[appConfigKey] = &appConfig{
				Home:   home,
				DBPath: dbPath,
				Debug:  c.Bool(debugFlag.Name),
				Conf:   conf,
				Local:  local,
			}
			return nil
		},
		After: func(c *urfave.Context) error {
			if cfg, ok := c.App.Metadata[appConfigKey].(*appConfig); ok && cfg.Local != nil {
				cfg.Local.Close()
			}
			return nil
		},
	}
}

func initLogging(debug bool) {
	level := "info"
	if debug {
		level = "debug"
	}
	logging.SetDefaultCLILogger(level)
}

func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		slog.Debug("error getting home dir, using current dir instead", "error", err)
		return "."
	}
	slog.Debug("home dir", "path", home)

	dirName := ".churnctl"
	dirPath := filepath.Join(home, dirName)
	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dirPath)
		err := os.Mkdir(dirPath, dirMode)
		if err != nil {
			slog.Debug("error creating dir", "path", dirPath, "home", home, "error", err)
			return home
		}
	}
	return dirPath
}

// modelPath resolves the artifact location: explicit flag wins over the
// configured default.
func modelPath(c *urfave.Context) string {
	if p := c.String(modelFileFlag.Name); p != "" {
		return p
	}
	return getConfig(c).Conf.ModelPath
}

func encode(v any) error {
	if outputFormat == formatYAML {
		return yaml.NewEncoder(os.Stdout).Encode(v)
	}
	e := json.NewEncoder(os.Stdout)
	e.SetIndent("", "  ")
	return e.Encode(v)
}
