package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Proton-105/tiergate-bot/internal/domain"
	apperrors "github.com/Proton-105/tiergate-bot/internal/errors"
)

const dateLayout = "2006-01-02 15:04"

type opener func(cmd *cobra.Command) (*env, error)

// withEnv opens the stores for the duration of fn.
func withEnv(open opener, fn func(ctx context.Context, e *env, out io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		e, err := open(cmd)
		if err != nil {
			return err
		}
		if e.close != nil {
			defer e.close()
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		return fn(ctx, e, cmd.OutOrStdout())
	}
}

func migrateCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			var applied []string
			err := apperrors.WithRetry(ctx, func() error {
				var err error
				applied, err = e.migrate(ctx)
				if err != nil {
					return apperrors.NewDatabaseError(err)
				}
				return nil
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "applied %d migration(s)\n", len(applied))
			for _, name := range applied {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		}),
	}
}

func accountCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Inspect and adjust accounts",
	}

	cmd.AddCommand(accountShowCmd(open))
	cmd.AddCommand(accountUpgradeCmd(open))
	cmd.AddCommand(accountCreditCmd(open))
	cmd.AddCommand(accountHistoryCmd(open))

	return cmd
}

func accountShowCmd(open opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <telegram-id>",
		Short: "Print an account",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		return withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			acc, err := e.accounts.Get(ctx, id)
			if err != nil {
				return err
			}
			printAccount(out, acc)
			return nil
		})(cmd, args)
	}
	return cmd
}

func accountUpgradeCmd(open opener) *cobra.Command {
	var months int

	cmd := &cobra.Command{
		Use:   "upgrade <telegram-id> <tier>",
		Short: "Set an account's tier without paying referral rewards",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().IntVar(&months, "months", 1, "billing periods to add for monthly tiers")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		t, ok := domain.ParseTier(args[1])
		if !ok {
			return apperrors.NewValidationError(fmt.Sprintf("unknown tier %q", args[1]))
		}
		if months < 1 {
			return apperrors.NewValidationError("months must be positive")
		}

		return withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			var acc *domain.Account
			err := apperrors.WithRetry(ctx, func() error {
				var err error
				acc, err = e.accounts.Upgrade(ctx, id, t, months)
				return err
			})
			if err != nil {
				return err
			}
			printAccount(out, acc)
			return nil
		})(cmd, args)
	}
	return cmd
}

func accountCreditCmd(open opener) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "credit <telegram-id> <amount>",
		Short: "Apply a signed credit adjustment",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().StringVar(&reason, "reason", "manual adjustment", "ledger entry description")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || amount == 0 {
			return apperrors.NewValidationError(fmt.Sprintf("invalid amount %q", args[1]))
		}

		return withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			var acc *domain.Account
			err := apperrors.WithRetry(ctx, func() error {
				var err error
				acc, err = e.accounts.AddCredits(ctx, id, amount, domain.EntryAdjustment, reason)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "credits: %d\n", acc.Credits)
			return nil
		})(cmd, args)
	}
	return cmd
}

func accountHistoryCmd(open opener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <telegram-id>",
		Short: "List recent ledger entries",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum entries")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}

		return withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			entries, err := e.accounts.History(ctx, id, limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "no entries")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tTYPE\tAMOUNT\tDESCRIPTION")
			for _, entry := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%+d\t%s\n", entry.CreatedAt.UTC().Format(dateLayout), entry.Type, entry.Amount, entry.Description)
			}
			return tw.Flush()
		})(cmd, args)
	}
	return cmd
}

func banCmd(open opener, ban bool) *cobra.Command {
	use, short := "unban <telegram-id>", "Lift a ban"
	if ban {
		use, short = "ban <telegram-id>", "Ban a user from every command"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := parseIdentity(args[0])
		if err != nil {
			return err
		}

		return withEnv(open, func(ctx context.Context, e *env, out io.Writer) error {
			if ban {
				if err := e.bans.Ban(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(out, "banned %d\n", id)
				return nil
			}
			if err := e.bans.Unban(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(out, "unbanned %d\n", id)
			return nil
		})(cmd, args)
	}
	return cmd
}

func parseIdentity(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError(fmt.Sprintf("invalid telegram id %q", raw))
	}
	return id, nil
}

func printAccount(out io.Writer, acc *domain.Account) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%d\n", acc.TelegramID)
	fmt.Fprintf(tw, "name:\t%s\n", acc.DisplayName())
	fmt.Fprintf(tw, "registered:\t%t\n", acc.Registered)
	fmt.Fprintf(tw, "tier:\t%s\n", acc.Tier)
	if acc.TierExpiresAt != nil {
		fmt.Fprintf(tw, "expires:\t%s\n", acc.TierExpiresAt.UTC().Format(dateLayout))
	}
	fmt.Fprintf(tw, "credits:\t%d\n", acc.Credits)
	fmt.Fprintf(tw, "checks today:\t%d\n", acc.ChecksToday)
	fmt.Fprintf(tw, "total checks:\t%d\n", acc.TotalChecks)
	fmt.Fprintf(tw, "referrals:\t%d (%d paid)\n", acc.TotalReferrals, acc.PaidReferrals)
	fmt.Fprintf(tw, "referral code:\t%s\n", acc.ReferralCode)
	_ = tw.Flush()
}
