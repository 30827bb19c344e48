package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"expensetracker/internal/app"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/gateway/rest"
	applog "expensetracker/internal/log"
	"expensetracker/internal/render"
	"expensetracker/internal/session"
)

// env is what every subcommand works with once the root has set it up.
type env struct {
	cfg    *config.Config
	logger *applog.Logger
	app    *app.App
	out    *render.Renderer
}

type rootFlags struct {
	verbose bool
	plain   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		flags rootFlags
		e     = &env{}
	)

	root := &cobra.Command{
		Use:           "expensectl",
		Short:         "Track personal expenses against an expense gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.setup(flags, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log gateway traffic at debug level")
	root.PersistentFlags().BoolVar(&flags.plain, "plain", false, "disable colours")

	root.AddCommand(
		newLoginCmd(e),
		newSignupCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newProfileCmd(e),
		newListCmd(e),
		newAddCmd(e),
		newRmCmd(e),
		newSummaryCmd(e),
		newCategoriesCmd(e),
		newExportCmd(e),
		newSheetsAuthCmd(e),
		newRefreshCmd(e),
	)
	return root
}

func (e *env) setup(flags rootFlags, stdout, stderr io.Writer) error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	cfg, err := cli.LoadConfig((*config.Config).ValidateClient)
	if err != nil {
		return err
	}
	if flags.verbose {
		cfg.LogLevel = "debug"
	}
	e.cfg = cfg
	e.logger = cli.SetupLogger(cfg, applog.ComponentCLI, stderr)

	policy, err := session.PolicyByName(cfg.AuthCredentials)
	if err != nil {
		return err
	}
	gw, err := rest.New(cfg.GatewayURL, cfg.GatewayTimeout,
		rest.WithLogger(e.logger.WithComponent(applog.ComponentGateway).Slog()))
	if err != nil {
		return err
	}
	e.app = app.New(gw, session.NewFileStorage(cfg.SessionFile), app.Options{
		Policy:   policy,
		PageSize: cfg.PageSize,
		Logger:   e.logger.Slog(),
	})

	styles := render.DefaultStyles()
	if flags.plain || os.Getenv("NO_COLOR") != "" {
		styles = render.PlainStyles()
	}
	e.out = render.New(stdout, cfg.CurrencySymbol, render.WithStyles(styles))
	return nil
}

// signedIn restores the persisted session and loads its expenses.
func (e *env) signedIn(ctx context.Context) (core.Session, error) {
	s, err := e.app.Start(ctx)
	if !s.IsAuthenticated() {
		return s, session.ErrNotAuthenticated
	}
	return s, err
}
