package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nikhilbhutani/pdfmate/internal/app"
	"github.com/nikhilbhutani/pdfmate/internal/auth"
	"github.com/nikhilbhutani/pdfmate/internal/billing"
	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/database"
	"github.com/nikhilbhutani/pdfmate/internal/logging"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pdfmatectl",
		Usage: "Operator tasks for the pdfmate backend",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply database migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "status", Usage: "Only print migration status"},
				},
				Action: migrateCommand,
			},
			{
				Name:      "purge-file",
				Usage:     "Delete a file from the vector store, object store and database",
				ArgsUsage: "<file-id>",
				Action:    purgeCommand,
			},
			{
				Name:      "quota",
				Usage:     "Show a user's upload quota for a month",
				ArgsUsage: "<user-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "month", Usage: "Month as YYYY-MM (default: current)"},
				},
				Action: quotaCommand,
			},
			{
				Name:   "plans",
				Usage:  "List subscription plans",
				Action: plansCommand,
			},
			{
				Name:  "token",
				Usage: "Sign a development bearer token with AUTH_JWT_SECRET",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sub", Usage: "Caller id", Required: true},
					&cli.StringFlag{Name: "email", Usage: "Caller email"},
					&cli.DurationFlag{Name: "ttl", Usage: "Token lifetime", Value: time.Hour},
				},
				Action: tokenCommand,
			},
		},
	}
}

// loadConfig reads the environment and sets up logging on stderr.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.NewWithWriter(cfg.Log, os.Stderr)
	return cfg, nil
}

func withApp(c *cli.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(c.Context, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(c.Context, a)
}

func migrateCommand(c *cli.Context) error {
	return withApp(c, func(ctx context.Context, a *app.App) error {
		if a.DB == nil {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		if c.Bool("status") {
			return database.MigrationStatus(ctx, a.DB)
		}
		if err := database.Migrate(ctx, a.DB); err != nil {
			return err
		}
		fmt.Fprintln(c.App.Writer, "migrations applied")
		return nil
	})
}

func purgeCommand(c *cli.Context) error {
	fileID := c.Args().First()
	if fileID == "" {
		return cli.Exit("purge-file needs a file id", 2)
	}
	return withApp(c, func(ctx context.Context, a *app.App) error {
		res := a.Deletion.PurgeEverywhere(ctx, fileID)
		fmt.Fprintf(c.App.Writer, "%s: %s\n", res.Title, res.Description)
		if !res.OK {
			return cli.Exit("", 1)
		}
		return nil
	})
}

func quotaCommand(c *cli.Context) error {
	userID := c.Args().First()
	if userID == "" {
		return cli.Exit("quota needs a user id", 2)
	}
	at := time.Now().UTC()
	if m := c.String("month"); m != "" {
		t, err := time.Parse("2006-01", m)
		if err != nil {
			return cli.Exit(fmt.Sprintf("invalid --month %q, want YYYY-MM", m), 2)
		}
		at = t
	}
	return withApp(c, func(ctx context.Context, a *app.App) error {
		st, err := a.Quota.WithClock(func() time.Time { return at }).Check(ctx, userID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	})
}

func plansCommand(c *cli.Context) error {
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQUOTA\tPAGES/PDF\tMAX MB\tPRICE")
	for _, p := range billing.Plans {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.2f\n", p.Name, p.Quota, p.PagesPerPDF, p.MaxFileSizeMB, p.Price)
	}
	return tw.Flush()
}

func tokenCommand(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return cli.Exit("AUTH_JWT_SECRET is not set", 2)
	}
	tok, err := auth.Issue(cfg.Auth.JWTSecret, cfg.Auth.Issuer, c.String("sub"), c.String("email"), c.Duration("ttl"))
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, tok)
	return nil
}
