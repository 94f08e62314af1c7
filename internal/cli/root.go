// Package cli implements the unhitch command-line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/unhitch/internal/paths"
	"github.com/mesh-intelligence/unhitch/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by subcommands once the root command has
// loaded the configuration.
type app struct {
	flags  rootFlags
	config types.Config
	logger *slog.Logger
}

// NewRootCmd creates the top-level "unhitch" command with global flags and
// all subcommands registered. Logs go to stderr.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Stderr)
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "unhitch",
		Short: "Detach entity graphs from a unit of work",
		Long: "unhitch loads an order graph from a local SQLite store into a tracking\n" +
			"context, detaches it, and shows that detached changes are never saved.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(logOut)
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: ./.unhitch-db)")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(a))
	root.AddCommand(newDetachCmd(a))
	return root
}

// load resolves directories, reads config.yaml, and builds the logger.
func (a *app) load(logOut io.Writer) error {
	config, err := loadConfig(a.flags)
	if err != nil {
		return err
	}
	a.config = config
	a.logger = newLogger(logOut, config.LogLevel, config.LogFormat)
	return nil
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// userErrors are caused by arguments or configuration rather than by the
// system.
var userErrors = []error{
	types.ErrNotFound,
	types.ErrInvalidKey,
	types.ErrStrategyUnknown,
	types.ErrBackendEmpty,
	types.ErrBackendUnknown,
	types.ErrLogLevelUnknown,
	types.ErrLogFormatUnknown,
	errUsage,
}

var errUsage = errors.New("usage")

func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return exitUserError
		}
	}
	return exitSysError
}
