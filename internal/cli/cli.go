package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/app"
	"github.com/solveprint/printshop/internal/auth"
	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/migration"
	"github.com/solveprint/printshop/internal/pricing"
	"github.com/solveprint/printshop/internal/seeder"
)

// NewRootCommand builds the root printshop CLI command.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "printshop",
		Short:         "Print shop service toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newStartCmd())
	root.AddCommand(newMigrateCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newWorkerCmd())
	root.AddCommand(newQuoteCmd())
	root.AddCommand(newTokenCmd())

	return root
}

// Execute runs the printshop CLI until it finishes or receives SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"run"},
		Short:   "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Module)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Up(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			all, _ := cmd.Flags().GetBool("all")
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := mig.Down(ctx, steps, all); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	downCmd.Flags().Int("steps", 1, "Number of migration steps to rollback")
	downCmd.Flags().Bool("all", false, "Rollback all applied migrations")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether they are applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mig *migration.Migrator
			opts := fx.Options(app.Core, migration.Module, fx.Populate(&mig))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				statuses, err := mig.Status(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tSTATE\tAPPLIED AT\tFILE")
				for _, s := range statuses {
					state, at := "pending", "-"
					if s.Applied {
						state, at = "applied", s.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.Version, state, at, s.Path)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, statusCmd)
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed shop settings and demo orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			var seed *seeder.Seeder
			opts := fx.Options(app.Core, seeder.Module, fx.Populate(&seed))
			return runWithApp(cmd.Context(), opts, func(ctx context.Context) error {
				if err := seed.Shop(ctx); err != nil {
					return err
				}
				if err := seed.Orders(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "seed data applied")
				return nil
			})
		},
	}
}

func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage background workers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run worker engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUntilDone(cmd.Context(), app.Worker)
		},
	})
	return cmd
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a print job",
		RunE: func(cmd *cobra.Command, args []string) error {
			pages, _ := cmd.Flags().GetInt("pages")
			if err := pricing.ValidatePages(pages); err != nil {
				return err
			}

			printFlag, _ := cmd.Flags().GetString("print")
			sidesFlag, _ := cmd.Flags().GetString("sides")
			out := cmd.OutOrStdout()

			if printFlag == "" && sidesFlag == "" {
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "PRINT\tSIDES\tCOST")
				for _, opt := range pricing.Quote(pages) {
					fmt.Fprintf(w, "%s\t%s\t%.2f\n", opt.PrintType, opt.SideType, opt.Cost)
				}
				return w.Flush()
			}

			pt, err := pricing.ParsePrintType(printFlag)
			if err != nil {
				return err
			}
			st, err := pricing.ParseSideType(sidesFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%.2f\n", pricing.ComputeCost(pages, pt, st))
			return nil
		},
	}
	cmd.Flags().Int("pages", 0, "Number of pages in the document")
	cmd.Flags().String("print", "", "Print type (BW or COLOR)")
	cmd.Flags().String("sides", "", "Side type (SINGLE or DOUBLE)")
	_ = cmd.MarkFlagRequired("pages")
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			roleFlag, _ := cmd.Flags().GetString("role")
			role, err := auth.ParseRole(roleFlag)
			if err != nil {
				return err
			}

			cfg, err := config.New()
			if err != nil {
				return err
			}
			if sub == "" && role == auth.RoleOwner {
				sub = cfg.Shop.OwnerID
			}
			if sub == "" {
				return fmt.Errorf("--sub is required for role %s", role)
			}

			token, err := auth.NewFromConfig(cfg).Issue(sub, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issueCmd.Flags().String("sub", "", "Token subject (defaults to the shop owner for the owner role)")
	issueCmd.Flags().String("role", string(auth.RoleCustomer), "Role: customer, owner or developer")

	cmd.AddCommand(issueCmd)
	return cmd
}

func runUntilDone(ctx context.Context, opts fx.Option) error {
	application := fx.New(opts)
	if err := application.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return application.Stop(stopCtx)
}

func runWithApp(ctx context.Context, opts fx.Option, fn func(context.Context) error) error {
	application := fx.New(opts, fx.NopLogger)
	if err := application.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	}()
	return fn(ctx)
}
