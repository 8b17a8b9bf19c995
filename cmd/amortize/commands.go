package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dafibh/loanledger/loanledger-backend/internal/amortization"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "amortize",
		Short: "Offline loan amortization calculator",
		Long: `amortize computes equal-installment repayment schedules, total interest
and prepayment projections with the same engine the loan service uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	root.AddCommand(newScheduleCmd(), newInterestCmd(), newPrepayCmd())
	return root
}

func addTermsFlags(cmd *cobra.Command) {
	cmd.Flags().String("principal", "", "Amount borrowed")
	cmd.Flags().String("rate", "", "Annual interest rate in percent")
	cmd.Flags().Int("months", 0, "Term in months")
	_ = cmd.MarkFlagRequired("principal")
	_ = cmd.MarkFlagRequired("rate")
	_ = cmd.MarkFlagRequired("months")
}

func termsFromFlags(cmd *cobra.Command) (amortization.Terms, error) {
	principal, err := decimalFlag(cmd, "principal")
	if err != nil {
		return amortization.Terms{}, err
	}
	rate, err := decimalFlag(cmd, "rate")
	if err != nil {
		return amortization.Terms{}, err
	}
	months, _ := cmd.Flags().GetInt("months")

	terms := amortization.Terms{Principal: principal, AnnualRatePercent: rate, TermMonths: months}
	if err := terms.Validate(); err != nil {
		return amortization.Terms{}, err
	}
	return terms, nil
}

func decimalFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s must be a number, got %q", name, raw)
	}
	return d, nil
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print the full repayment schedule",
		Example: `  amortize schedule --principal 120000 --rate 6 --months 12
  amortize schedule --principal 250000 --rate 7.25 --months 360 --start 2025-01-01`,
		RunE: runSchedule,
	}
	addTermsFlags(cmd)
	cmd.Flags().String("start", "", "Start date (YYYY-MM-DD, default: today)")
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	terms, err := termsFromFlags(cmd)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	if raw, _ := cmd.Flags().GetString("start"); raw != "" {
		start, err = time.Parse(dateLayout, raw)
		if err != nil {
			return fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
		}
	}

	log.Debug().
		Str("principal", terms.Principal.String()).
		Str("rate", terms.AnnualRatePercent.String()).
		Int("months", terms.TermMonths).
		Msg("Generating schedule")

	entries := amortization.GenerateSchedule(terms, start, 0)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "#\tDue date\tInstallment\tPrincipal\tInterest\tBalance\t")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t\n",
			e.InstallmentNumber,
			e.DueDate.Format(dateLayout),
			e.AmountDue.StringFixed(2),
			e.PrincipalComponent.StringFixed(2),
			e.InterestComponent.StringFixed(2),
			e.RemainingBalanceAfter.StringFixed(2))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	return printSummary(cmd.OutOrStdout(), terms)
}

func newInterestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "interest",
		Short:   "Print the installment and total interest",
		Example: `  amortize interest --principal 120000 --rate 6 --months 12`,
		RunE: func(cmd *cobra.Command, args []string) error {
			terms, err := termsFromFlags(cmd)
			if err != nil {
				return err
			}
			return printSummary(cmd.OutOrStdout(), terms)
		},
	}
	addTermsFlags(cmd)
	return cmd
}

func printSummary(out io.Writer, terms amortization.Terms) error {
	installment := amortization.Installment(terms.Principal, terms.AnnualRatePercent, terms.TermMonths)
	interest := amortization.TotalInterest(terms)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Monthly payment:\t%s\n", installment.StringFixed(2))
	fmt.Fprintf(w, "Total interest:\t%s\n", interest.StringFixed(2))
	fmt.Fprintf(w, "Total payment:\t%s\n", terms.Principal.Round(2).Add(interest).StringFixed(2))
	return w.Flush()
}

func newPrepayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prepay",
		Short:   "Project the effect of a lump-sum prepayment",
		Example: `  amortize prepay --balance 50000 --amount 10000 --installment 1907.98 --months 30 --rate 9`,
		RunE:    runPrepay,
	}
	cmd.Flags().String("balance", "", "Remaining balance")
	cmd.Flags().String("amount", "", "Prepayment amount")
	cmd.Flags().String("installment", "", "Current monthly installment")
	cmd.Flags().Int("months", 0, "Remaining months")
	cmd.Flags().String("rate", "", "Annual interest rate in percent")
	for _, name := range []string{"balance", "amount", "installment", "months", "rate"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runPrepay(cmd *cobra.Command, args []string) error {
	var req amortization.PrepaymentRequest
	var err error
	if req.RemainingBalance, err = decimalFlag(cmd, "balance"); err != nil {
		return err
	}
	if req.PrepaymentAmount, err = decimalFlag(cmd, "amount"); err != nil {
		return err
	}
	if req.CurrentInstallment, err = decimalFlag(cmd, "installment"); err != nil {
		return err
	}
	if req.AnnualRatePercent, err = decimalFlag(cmd, "rate"); err != nil {
		return err
	}
	req.RemainingMonths, _ = cmd.Flags().GetInt("months")

	projection, err := amortization.ProjectPrepayment(req)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "New balance:\t%s\n", projection.NewBalance.StringFixed(2))
	fmt.Fprintf(w, "Months saved:\t%d\n", projection.MonthsSaved)
	fmt.Fprintf(w, "Interest saved:\t%s\n", projection.InterestSaved.StringFixed(2))
	fmt.Fprintf(w, "New monthly payment:\t%s\n", projection.NewMonthlyPayment.StringFixed(2))
	return w.Flush()
}
