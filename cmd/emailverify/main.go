package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/optimode/emailverify"
	"github.com/optimode/emailverify/cache"
	"github.com/optimode/emailverify/internal/config"
	"github.com/optimode/emailverify/internal/di"
	"github.com/optimode/emailverify/internal/server"
	"github.com/optimode/emailverify/types"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	verbose bool
	logJSON bool

	cfg *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "emailverify",
	Short: "Email deliverability verification",
	Long: `emailverify checks whether email addresses can receive mail.

Each address goes through syntax, disposable-domain, DNS and SMTP recipient
checks and ends with a status and a quality score. Settings come from
config.yaml, EMAILVERIFY_* environment variables (a .env file is loaded
when present) and the command-line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		c, err := config.New(cfgFile)
		if err != nil {
			return err
		}
		if verbose {
			c.Set("logging.level", "debug")
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml, ~/.emailverify/config.yaml or /etc/emailverify/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write CLI logs as JSON")

	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(bulkCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// withVerifier builds the container and hands the verifier to fn. The
// verifier and its cache are closed afterwards.
func withVerifier(fn func(v *emailverify.Verifier) error) error {
	if !verbose {
		cfg.Set("logging.level", "warn")
	}
	if !logJSON {
		cfg.Set("logging.format", "console")
	}

	container, err := di.BuildContainer(cfg)
	if err != nil {
		return err
	}
	var runErr error
	err = container.Invoke(func(v *emailverify.Verifier, store cache.Store, logger *zap.Logger) {
		defer func() { _ = logger.Sync() }()
		defer func() { _ = store.Close() }()
		defer func() { _ = v.Close() }()
		runErr = fn(v)
	})
	if err != nil {
		return dig.RootCause(err)
	}
	return runErr
}

// ── verify ───────────────────────────────────────────────────────────────────

var (
	verifyFormat  string
	verifyRefresh bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <address> [address] ...",
	Short: "Verify one or more addresses",
	Long: `verify runs the full pipeline for each address and prints the verdict.

  emailverify verify alice@example.com
  emailverify verify --format json alice@example.com bob@example.org

Cached verdicts are reused; --refresh drops them first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(verifyFormat); err != nil {
			return err
		}
		return withVerifier(func(v *emailverify.Verifier) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if verifyRefresh {
				for _, a := range args {
					if err := v.Forget(ctx, a); err != nil {
						return fmt.Errorf("drop cached result for %q: %w", a, err)
					}
				}
			}
			results, err := v.VerifyBulk(ctx, args)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), verifyFormat, results)
		})
	},
}

func init() {
	verifyCmd.Flags().StringVar(&verifyFormat, "format", "text", "Output format: text or json")
	verifyCmd.Flags().BoolVar(&verifyRefresh, "refresh", false, "Ignore cached verdicts")
}

// ── bulk ─────────────────────────────────────────────────────────────────────

var (
	bulkFile   string
	bulkFormat string
)

var bulkCmd = &cobra.Command{
	Use:   "bulk",
	Short: "Verify a list of addresses, one per line",
	Long: `bulk reads addresses from a file (or stdin with --file -), one per line.
Blank lines and lines starting with # are skipped. A summary with the number
of verified addresses follows the results.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkFormat(bulkFormat); err != nil {
			return err
		}

		var in io.Reader = cmd.InOrStdin()
		if bulkFile != "-" {
			f, err := os.Open(bulkFile)
			if err != nil {
				return fmt.Errorf("open %s: %w", bulkFile, err)
			}
			defer f.Close()
			in = f
		}
		addresses, err := readAddresses(in)
		if err != nil {
			return err
		}
		if len(addresses) == 0 {
			return fmt.Errorf("no addresses to verify")
		}

		return withVerifier(func(v *emailverify.Verifier) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := v.VerifyBulk(ctx, addresses)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if err := printResults(out, bulkFormat, results); err != nil {
				return err
			}
			if bulkFormat == "text" {
				total, valid := summarize(results)
				fmt.Fprintf(out, "\ntotal: %d, verified: %d\n", total, valid)
			}
			return nil
		})
	},
}

func init() {
	bulkCmd.Flags().StringVarP(&bulkFile, "file", "f", "-", "Input file, - for stdin")
	bulkCmd.Flags().StringVar(&bulkFormat, "format", "text", "Output format: text or json")
}

// ── serve ────────────────────────────────────────────────────────────────────

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `serve exposes POST /verify, POST /verify-bulk, GET /health and GET /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveListen != "" {
			cfg.Set("server.listen", serveListen)
		}

		container, err := di.BuildContainer(cfg)
		if err != nil {
			return err
		}
		var runErr error
		err = container.Invoke(func(srv *server.Server, v *emailverify.Verifier, store cache.Store, logger *zap.Logger) {
			defer func() { _ = logger.Sync() }()
			defer func() { _ = store.Close() }()
			defer func() { _ = v.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			runErr = srv.Run(ctx)
			logger.Info("server stopped")
		})
		if err != nil {
			return dig.RootCause(err)
		}
		return runErr
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from server.listen, :8080)")
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the emailverify version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "emailverify %s\n", version)
	},
}

// ── output ───────────────────────────────────────────────────────────────────

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("unknown format %q: use text or json", format)
	}
}

// readAddresses returns the non-blank, non-comment lines of r.
func readAddresses(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	return out, nil
}

func summarize(results []types.Result) (total, verified int) {
	for _, r := range results {
		if r.IsVerified {
			verified++
		}
	}
	return len(results), verified
}

func printResults(w io.Writer, format string, results []types.Result) error {
	if format == "json" {
		// Single result: unwrap from array for convenience.
		var v any = results
		if len(results) == 1 {
			v = results[0]
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tSTATUS\tQUALITY\tVERIFIED\tNOTE")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", r.Email, r.Status, r.QualityScore, r.IsVerified, note(r.Details))
	}
	return tw.Flush()
}

// note picks the most useful detail for the text table.
func note(d types.Details) string {
	switch {
	case d.Error != "":
		return d.Error
	case d.Suggestion != "":
		return "did you mean " + d.Suggestion + "?"
	case d.IsCatchAll:
		return "domain accepts any recipient"
	case d.IsRoleAccount:
		return "role account"
	default:
		return d.Reason
	}
}
