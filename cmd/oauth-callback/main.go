package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/brizzai/oauth-callback/internal/authorize"
	"github.com/brizzai/oauth-callback/internal/callback"
	"github.com/brizzai/oauth-callback/internal/config"
	"github.com/brizzai/oauth-callback/internal/logger"
	"github.com/brizzai/oauth-callback/internal/server"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		pterm.Error.WithWriter(os.Stderr).Println(err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command serves the callback.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "oauth-callback",
		Short: "Catch an OAuth 2.0 authorization-code redirect on a local port",
		Long: `oauth-callback listens on http://127.0.0.1:8080/ and answers the authorization
server's redirect with the received code, so it can be copied while developing
an OAuth client.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			versionFlag, _ := cmd.Flags().GetBool("version")
			if versionFlag {
				pterm.Info.WithWriter(cmd.OutOrStdout()).Println(config.GetVersionInfo())
				os.Exit(0)
			}
			return nil
		},
		RunE: runServe,
	}

	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the callback route (default)",
			Args:  cobra.NoArgs,
			RunE:  runServe,
		},
		newAuthorizeURLCmd(),
		&cobra.Command{
			Use:   "config",
			Short: "Print the effective configuration as YAML",
			Args:  cobra.NoArgs,
			RunE:  runConfig,
		},
	)

	return rootCmd
}

func newAuthorizeURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the authorization URL that redirects back to this server",
		Args:  cobra.NoArgs,
		RunE:  runAuthorizeURL,
	}
	cmd.Flags().String("state", "", "State value to send (random UUID if empty)")
	cmd.Flags().String("client-id", "", "OAuth client ID (overrides oauth.client_id)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pterm.Error.WithWriter(cmd.ErrOrStderr()).Printf("Caught panic: %v\n%s\n", r, debug.Stack())
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	var srv *server.Server
	app := fx.New(
		fx.WithLogger(logger.FxEventLogger),
		fx.Supply(cfg),
		callback.Module,
		server.Module,
		fx.Populate(&srv),
	)

	startCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("Listening for the authorization redirect on %s", listenURL(srv, cfg))

	sig := <-app.Wait()
	logger.Info("Stopping", zap.Any("signal", sig.Signal), zap.Int("exit_code", sig.ExitCode))

	stopCtx, cancelStop := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}

	if sig.ExitCode != 0 {
		return fmt.Errorf("callback server exited with code %d", sig.ExitCode)
	}
	return nil
}

// listenURL is the callback route on the bound address, independent of oauth.redirect_url
func listenURL(srv *server.Server, cfg *config.Config) string {
	return srv.URL() + cfg.Callback.Path
}

func runAuthorizeURL(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	if clientID, _ := cmd.Flags().GetString("client-id"); clientID != "" {
		cfg.OAuth.ClientID = clientID
	}

	authorizer, err := authorize.NewAuthorizer(cfg)
	if err != nil {
		return err
	}

	state, _ := cmd.Flags().GetString("state")
	req := authorizer.AuthCodeURL(state)

	pterm.Info.WithWriter(cmd.ErrOrStderr()).Printfln("Open this URL in a browser. The redirect lands on %s (state %s)",
		pterm.LightGreen(req.RedirectURI), pterm.White(req.State))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), req.URL)
	return err
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}
