// Command campusctl signs in to the campus backend and calls its API from a
// terminal. The session is kept in a file (or the store named by the config) so
// that later invocations reuse it.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	goCampus "github.com/MrEthical07/goCampus"
	"github.com/MrEthical07/goCampus/notify"
)

// app holds what the persistent hooks build for the subcommands.
type app struct {
	configPath  string
	envFile     string
	baseURL     string
	sessionFile string
	verbose     bool

	logger *zap.Logger
	client *goCampus.Client
}

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// execute runs one invocation. The client is closed even when the command fails,
// which cobra's post-run hooks do not guarantee.
func execute(args []string, out io.Writer) error {
	a := &app{}
	defer a.teardown()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(out)
	return root.Execute()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "campusctl",
		Short:         "Campus course-management client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	flags.StringVar(&a.baseURL, "base-url", "", "backend API root (overrides config)")
	flags.StringVar(&a.sessionFile, "session-file", defaultSessionFile(), "session file used with the memory driver")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newProfileCmd(a),
		newRequestCmd(a),
		newUploadCmd(a),
		newListCmd(a),
		newMetricsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := goCampus.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	// A memory store would forget the session between invocations.
	if cfg.Storage.Driver == goCampus.StorageMemory && a.sessionFile != "" {
		cfg.Storage.Driver = goCampus.StorageFile
		cfg.Storage.Path = a.sessionFile
	}

	zcfg := zap.NewProductionConfig()
	if a.verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.logger = logger

	client, err := goCampus.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithNotifier(notify.NewLogger(logger.Named("notify"))).
		Build()
	if err != nil {
		_ = logger.Sync()
		return err
	}
	a.client = client
	return nil
}

func (a *app) teardown() {
	if a.client != nil {
		if err := a.client.Close(); err != nil {
			a.logger.Warn("close client", zap.Error(err))
		}
		a.client = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
		a.logger = nil
	}
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "gocampus", "session.json")
}
