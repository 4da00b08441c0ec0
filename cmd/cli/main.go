package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/iho/envelopes/internal/adapter/http/dto"
	"github.com/iho/envelopes/internal/adapter/idgen"
	fileRepo "github.com/iho/envelopes/internal/adapter/repository/file"
	"github.com/iho/envelopes/internal/domain"
	"github.com/iho/envelopes/internal/infrastructure/logger"
	"github.com/iho/envelopes/internal/usecase"
)

// errInvalidBook makes verify exit non-zero after printing its report.
var errInvalidBook = errors.New("ledger book failed verification")

type cli struct {
	dataDir  string
	timeout  time.Duration
	logLevel string
	asJSON   bool

	ledger *usecase.LedgerUseCase
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "envelopes",
		Short:         "Envelope budgeting ledger",
		Long:          `Reconcile envelope budgets against bank statements, stored as ledger books on disk.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.open(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.dataDir, "data-dir", envOr("DATA_DIR", "./data"), "Directory holding ledger books")
	rootCmd.PersistentFlags().DurationVar(&c.timeout, "timeout", 10*time.Second, "Save timeout")
	rootCmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "Log level")
	rootCmd.PersistentFlags().BoolVar(&c.asJSON, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(
		c.initCmd(),
		c.showCmd(),
		c.trackCmd(),
		c.moveCmd(),
		c.reconcileCmd(),
		c.undoCmd(),
		c.remarksCmd(),
		c.verifyCmd(),
		c.renameCmd(),
	)

	return rootCmd
}

func (c *cli) open(stderr io.Writer) error {
	log := logger.New(logger.Config{Level: c.logLevel, Format: "console", Output: stderr})

	repo, err := fileRepo.NewBookRepository(c.dataDir, log)
	if err != nil {
		return err
	}

	c.ledger = usecase.NewLedgerUseCase(
		repo,
		usecase.NewLocalLocker(),
		idgen.NewUUIDGenerator(),
		idgen.NewULIDGenerator(),
		nil,
		log,
	).WithSaveTimeout(c.timeout)
	return nil
}

func (c *cli) initCmd() *cobra.Command {
	var key string
	var buckets []string

	cmd := &cobra.Command{
		Use:   "init NAME",
		Short: "Create a ledger book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := usecase.CreateBookInput{Name: args[0], StorageKey: key}
			for _, b := range buckets {
				code, account, ok := strings.Cut(b, "=")
				if !ok {
					return fmt.Errorf("bucket %q must be CODE=ACCOUNT", b)
				}
				input.Buckets = append(input.Buckets, usecase.BucketInput{Code: code, Account: account})
			}

			book, err := c.ledger.CreateBook(cmd.Context(), input)
			if err != nil {
				return err
			}
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), dto.BookFromDomain(book, 0))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %q with key %s\n", book.Name, book.StorageKey)
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "Storage key (generated when empty)")
	cmd.Flags().StringArrayVar(&buckets, "bucket", nil, "Bucket to track as CODE=ACCOUNT (repeatable)")
	return cmd
}

func (c *cli) showCmd() *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show a ledger book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := c.ledger.GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			resp := dto.BookFromDomain(book, lines)
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			return printBook(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().IntVar(&lines, "lines", 3, "Most recent lines to show (0 for all)")
	return cmd
}

func (c *cli) trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track KEY CODE ACCOUNT",
		Short: "Start tracking a bucket",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			bucket, err := c.ledger.TrackBucket(cmd.Context(), args[0], usecase.BucketInput{Code: args[1], Account: args[2]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Tracking %s in %s\n", bucket.Code, bucket.StoredInAccount)
			return nil
		},
	}
}

func (c *cli) moveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move KEY CODE ACCOUNT",
		Short: "Store a bucket's funds in another account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.ledger.MoveBucketToAccount(cmd.Context(), args[0], args[1], args[2]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s to %s\n", domain.NormalizeBucketCode(args[1]), args[2])
			return nil
		},
	}
}

func (c *cli) reconcileCmd() *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "reconcile KEY",
		Short: "Record a reconciliation from a JSON file",
		Long: `Record a reconciliation. The input file has the same shape as the body of
POST /api/v1/books/{key}/reconciliations; use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readReconcileRequest(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			reconcileInput, err := req.ToDomain()
			if err != nil {
				return err
			}

			line, err := c.ledger.Reconcile(cmd.Context(), args[0], reconcileInput)
			if err != nil {
				return err
			}
			resp := dto.LineFromDomain(line)
			if c.asJSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			return printLine(cmd.OutOrStdout(), resp)
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Reconciliation JSON file")
	cmd.MarkFlagRequired("input")
	return cmd
}

func readReconcileRequest(stdin io.Reader, path string) (*dto.ReconcileRequest, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var req dto.ReconcileRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid reconciliation input: %w", err)
	}
	if err := dto.Validate(&req); err != nil {
		return nil, fmt.Errorf("invalid reconciliation input: %w", err)
	}
	return &req, nil
}

func (c *cli) undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo KEY DATE",
		Short: "Remove the most recent reconciliation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDate(args[1])
			if err != nil {
				return err
			}
			if err := c.ledger.RemoveLatestLine(cmd.Context(), args[0], date); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed reconciliation %s\n", args[1])
			return nil
		},
	}
}

func (c *cli) remarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remarks KEY DATE TEXT",
		Short: "Replace the remarks of a reconciliation",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseDate(args[1])
			if err != nil {
				return err
			}
			return c.ledger.UpdateRemarks(cmd.Context(), args[0], date, args[2])
		},
	}
}

func (c *cli) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename KEY NAME",
		Short: "Rename a ledger book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.ledger.RenameBook(cmd.Context(), args[0], args[1])
		},
	}
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify KEY",
		Short: "Check a ledger book's checksum and invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := c.ledger.Verify(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if c.asJSON {
				if err := printJSON(out, dto.VerifyFromReport(report)); err != nil {
					return err
				}
			} else if report.Valid {
				fmt.Fprintf(out, "Verification PASSED\nLines: %d\nBuckets: %d\nSurplus sum: %s\n",
					report.Lines, report.Buckets, report.SurplusSum.StringFixed(2))
			} else {
				fmt.Fprintf(out, "Verification FAILED\n")
				for _, p := range report.Problems {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}

			if !report.Valid {
				return errInvalidBook
			}
			return nil
		},
	}
}

func printBook(w io.Writer, book *dto.BookResponse) error {
	fmt.Fprintf(w, "%s (%s)\n", book.Name, book.StorageKey)
	fmt.Fprintf(w, "Modified: %s\n", book.Modified.Format(time.RFC3339))
	fmt.Fprintf(w, "Lines: %d  Surplus sum: %s\n\n", book.TotalLines, book.SurplusSum.StringFixed(2))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUCKET\tACCOUNT")
	for _, b := range book.Buckets {
		fmt.Fprintf(tw, "%s\t%s\n", b.Code, b.Account)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, line := range book.Lines {
		fmt.Fprintln(w)
		if err := printLine(w, line); err != nil {
			return err
		}
	}
	return nil
}

func printLine(w io.Writer, line *dto.LineResponse) error {
	fmt.Fprintf(w, "%s  bank %s  ledger %s  surplus %s\n", line.Date,
		line.TotalBankBalance.StringFixed(2), line.LedgerBalance.StringFixed(2), line.CalculatedSurplus.StringFixed(2))
	if line.Remarks != "" {
		fmt.Fprintf(w, "  %s\n", truncate(line.Remarks, 72))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "  BUCKET\tOPENING\tNET\tCLOSING\tTXNS\t")
	for _, e := range line.Entries {
		net := e.ClosingBalance.Sub(e.OpeningBalance)
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%d\t\n", e.BucketCode,
			e.OpeningBalance.StringFixed(2), net.StringFixed(2), e.ClosingBalance.StringFixed(2), len(e.Transactions))
	}
	return tw.Flush()
}

// printJSON prints any value as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(ctx)
}
