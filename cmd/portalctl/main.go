package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/umkm-portal/internal/authapi"
	"github.com/spec-kit/umkm-portal/internal/config"
	"github.com/spec-kit/umkm-portal/internal/observability"
	"github.com/spec-kit/umkm-portal/internal/session"
	"github.com/spec-kit/umkm-portal/internal/tokenstore"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// cli holds what every subcommand shares once the root has set it up.
type cli struct {
	cfg     *config.ClientConfig
	logger  *zap.Logger
	manager *session.Manager
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "portalctl",
		Short: "Sign in to the UMKM portal from the command line",
		Long: `portalctl keeps a portal session in a local state directory.

Configuration comes from the environment (or a .env file):
  PORTAL_API_URL               Auth API base URL
  PORTAL_STATE_DIR             where tokens are stored (default ~/.umkm-portal)
  PORTAL_HTTP_TIMEOUT_SECONDS  request timeout
  PORTAL_LOG_LEVEL             diagnostic log level, written to stderr`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd.OutOrStdout())
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	rootCmd.AddCommand(
		loginCmd(c),
		registerCmd(c),
		logoutCmd(c),
		whoamiCmd(c),
		refreshCmd(c),
		versionCmd(),
	)
	return rootCmd
}

func (c *cli) setup(out io.Writer) error {
	home, _ := os.UserHomeDir()
	cfg, err := config.LoadClient(home)
	if err != nil {
		return err
	}
	logger, err := observability.NewCLILogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	c.cfg = cfg
	c.logger = logger
	c.manager = session.NewManager(session.Config{
		API:    authapi.New(cfg.APIURL, cfg.HTTPTimeout()),
		Store:  tokenstore.New(tokenstore.NewFileKV(cfg.StateDir)),
		Logger: logger,
		Navigator: session.NavigatorFunc(func(path string) {
			fmt.Fprintf(out, "  sign in again at %s\n", path)
		}),
	})
	return nil
}

func success(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, args...))
}

func info(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, "  %s\n", fmt.Sprintf(format, args...))
}
