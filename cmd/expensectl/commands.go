package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"expensetracker/internal/cli"
	"expensetracker/internal/core"
	"expensetracker/internal/export/sheets"
	applog "expensetracker/internal/log"
	"expensetracker/internal/session"
)

func newLoginCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "login <username> <password>",
		Short: "Sign in and remember the session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.app.Login(cmd.Context(), args[0], args[1])
			if s.IsAuthenticated() {
				e.out.Session(s)
			}
			return err
		},
	}
}

func newSignupCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <username> <password> <name...>",
		Short: "Create an account and sign in",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.app.Signup(cmd.Context(), args[0], args[1], strings.Join(args[2:], " "))
			if s.IsAuthenticated() {
				e.out.Session(s)
			}
			return err
		},
	}
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e.app.Session.Restore()
			e.app.Logout()
			e.out.Info("Signed out.")
			return nil
		},
	}
}

func newWhoamiCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e.out.Session(e.app.Session.Restore())
			return nil
		},
	}
}

func newProfileCmd(e *env) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	profile.AddCommand(&cobra.Command{
		Use:   "set-name <name...>",
		Short: "Change your display name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if s := e.app.Session.Restore(); !s.IsAuthenticated() {
				return session.ErrNotAuthenticated
			}
			s, err := e.app.Session.UpdateProfile(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			e.out.Session(s)
			return nil
		},
	})
	return profile
}

type listFlags struct {
	search   string
	category string
	from     string
	to       string
	page     int
	pageSize int
}

func newListCmd(e *env) *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your expenses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := e.signedIn(cmd.Context()); err != nil {
				return err
			}
			l := e.app.Listing
			l.SetSearch(f.search)
			if f.category != "" {
				c := core.Category(f.category)
				if !c.IsValid() {
					return &core.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", f.category)}
				}
				l.SetCategory(c)
			}
			start, err := optionalDate("from", f.from)
			if err != nil {
				return err
			}
			end, err := optionalDate("to", f.to)
			if err != nil {
				return err
			}
			l.SetDateRange(start, end)
			if f.pageSize > 0 {
				l.SetPageSize(f.pageSize)
			}
			l.SetPage(f.page - 1)
			e.out.Page(e.app.Page())
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "match descriptions containing text")
	cmd.Flags().StringVarP(&f.category, "category", "c", "", "only this category")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.to, "to", "", "latest date, YYYY-MM-DD")
	cmd.Flags().IntVarP(&f.page, "page", "p", 1, "page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 0, "expenses per page (default PAGE_SIZE)")
	return cmd
}

func optionalDate(field, s string) (core.Date, error) {
	if s == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Reason: "must be a valid YYYY-MM-DD date"}
	}
	return d, nil
}

func newAddCmd(e *env) *cobra.Command {
	var d core.Draft
	cmd := &cobra.Command{
		Use:   "add <description...>",
		Short: "Record an expense",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.signedIn(cmd.Context()); err != nil {
				return err
			}
			d.Description = strings.Join(args, " ")
			if d.Date == "" {
				d.Date = core.DateOf(time.Now()).String()
			}
			added, err := e.app.AddExpense(cmd.Context(), d)
			if err != nil {
				return err
			}
			e.out.Expense(added)
			return nil
		},
	}
	cmd.Flags().StringVarP(&d.Category, "category", "c", "", "one of the categories listed by 'expensectl categories'")
	cmd.Flags().StringVarP(&d.Amount, "amount", "a", "", "positive amount, e.g. 12.50 or 12,50")
	cmd.Flags().StringVarP(&d.Date, "date", "d", "", "YYYY-MM-DD (default today)")
	return cmd
}

func newRmCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete an expense",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := e.signedIn(cmd.Context()); err != nil {
				return err
			}
			if err := e.app.RemoveExpense(cmd.Context(), core.ID(args[0])); err != nil {
				return err
			}
			e.out.Info("Deleted expense " + args[0] + ".")
			return nil
		},
	}
}

func newSummaryCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show dashboard figures and the category breakdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := e.signedIn(cmd.Context()); err != nil {
				return err
			}
			e.out.Summary(e.app.Summary())
			return nil
		},
	}
}

func newCategoriesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the expense categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e.out.Categories()
			return nil
		},
	}
}

func newExportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Append your expenses to a Google Sheet, skipping ones already there",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.ValidateExport(); err != nil {
				return err
			}
			if _, err := e.signedIn(cmd.Context()); err != nil {
				return err
			}
			client, err := sheets.New(cmd.Context(), cli.SheetsConfig(e.cfg), e.logger.WithComponent(applog.ComponentSheets).Slog())
			if err != nil {
				return err
			}
			n, err := client.Export(cmd.Context(), e.app.Expenses.Snapshot())
			if err != nil {
				return err
			}
			e.out.Info(fmt.Sprintf("Exported %d new %s to sheet %q.", n, pluralExpense(n), e.cfg.GoogleSheetName))
			return nil
		},
	}
}

func newSheetsAuthCmd(e *env) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "sheets-auth",
		Short: "Authorize export with your Google account and save the token",
		Long: "Opens a consent URL and waits for Google to redirect back to a local port " +
			"(OAUTH_REDIRECT_PORT). The token is written to GOOGLE_OAUTH_TOKEN_FILE, " +
			"which export and the worker then use instead of a service account.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := e.cfg.ValidateOAuthClient(); err != nil {
				return err
			}
			oc, err := sheets.OAuthConfig(e.cfg.GoogleOAuthClientJSON, e.cfg.GoogleOAuthClientFile)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			tok, err := sheets.Authorize(ctx, oc, e.cfg.OAuthRedirectPort, func(url string) {
				e.out.Info("Open this URL to authorize:\n" + url)
			})
			if err != nil {
				return err
			}
			path := e.cfg.GoogleOAuthTokenFile
			if path == "" {
				path = "token.json"
			}
			if err := sheets.SaveToken(path, tok); err != nil {
				return err
			}
			e.out.Info("Saved token to " + path + ".")
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the browser")
	return cmd
}

func newRefreshCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Re-read your profile and expenses from the gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if s := e.app.Session.Restore(); !s.IsAuthenticated() {
				return session.ErrNotAuthenticated
			}
			if err := e.app.Refresh(cmd.Context()); err != nil {
				return err
			}
			e.out.Session(e.app.Session.Current())
			n := len(e.app.Expenses.Snapshot())
			e.out.Info(fmt.Sprintf("%d %s loaded.", n, pluralExpense(n)))
			return nil
		},
	}
}

func pluralExpense(n int) string {
	if n == 1 {
		return "expense"
	}
	return "expenses"
}
