// Package cli is the consentscan command tree. It is kept apart from
// cmd/consentscan so commands can be executed against buffers in tests.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/consentscan/internal/app"
	"github.com/raysh454/consentscan/internal/browser"
	"github.com/raysh454/consentscan/internal/logging"
	"github.com/raysh454/consentscan/internal/model"
	"github.com/raysh454/consentscan/internal/policytext"
	"github.com/raysh454/consentscan/internal/scanner"
	"github.com/raysh454/consentscan/internal/server"
	"github.com/raysh454/consentscan/internal/store"
)

const shutdownGrace = 10 * time.Second

// state is shared by every subcommand once the root's pre-run has loaded
// configuration.
type state struct {
	cfgFile string
	backend string

	cfg    *app.Config
	logger logging.Logger
}

// NewRootCommand builds the command tree. Output goes to the command's
// writers; logs go to its error writer.
func NewRootCommand() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:           "consentscan",
		Short:         "Scan websites for cookie consent and GDPR basics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig(st.cfgFile)
			if err != nil {
				return err
			}
			if st.backend != "" {
				cfg.Browser.Backend = browser.Backend(st.backend)
			}
			logger, err := newLogger(cfg.Log.Format, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("logger: %w", err)
			}
			st.cfg = cfg
			st.logger = logger
			return nil
		},
	}

	root.PersistentFlags().StringVar(&st.cfgFile, "config", "", "config file (yaml, json or toml)")
	root.PersistentFlags().StringVar(&st.backend, "backend", "", "browser backend: "+strings.Join(browser.ListBackends(), "|"))

	root.AddCommand(
		newServeCommand(st),
		newScanCommand(st),
		newHistoryCommand(st),
		newPolicyCommand(st),
		newBackendsCommand(),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func newLogger(format string, w io.Writer) (logging.Logger, error) {
	if format == "zap" {
		return logging.NewZapLogger("consentscan")
	}
	return logging.NewWriterLogger(w, "consentscan"), nil
}

// ─── serve ─────────────────────────────────────────────────────────────

func newServeCommand(st *state) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				st.cfg.Server.ListenAddr = listen
			}
			srv, err := server.NewServer(server.Config{AppConfig: st.cfg, Logger: st.logger})
			if err != nil {
				return err
			}
			defer srv.Close()
			return serve(cmd.Context(), srv.HTTPServer(), st.logger)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides server.listen_addr)")
	return cmd
}

// serve runs hs until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, hs *http.Server, logger logging.Logger) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.Field{Key: "addr", Value: hs.Addr})
		errCh <- hs.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return hs.Shutdown(shutdownCtx)
}

// ─── scan ──────────────────────────────────────────────────────────────

// ScanOutput is one line of scan output.
type ScanOutput struct {
	URL         string   `json:"url"`
	Score       int      `json:"score,omitempty"`
	Missing     []string `json:"missing,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Scripts     []string `json:"scripts,omitempty"`
	Cookies     []string `json:"cookies,omitempty"`
	AnalysisID  string   `json:"analysis_id,omitempty"`
	Error       string   `json:"error,omitempty"`
	Kind        string   `json:"kind,omitempty"`
}

func newScanCommand(st *state) *cobra.Command {
	var (
		user        string
		concurrency int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scan <url>...",
		Short: "Scan one or more sites and print one JSON object per site",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if concurrency > 0 {
				st.cfg.Scanner.MaxConcurrent = concurrency
			}
			if timeout > 0 {
				st.cfg.Browser.Timeout = timeout
			}
			renderer, err := browser.NewRenderer(st.cfg.Browser, st.logger)
			if err != nil {
				return err
			}
			sc, err := scanner.New(st.cfg.Scanner, renderer, st.logger)
			if err != nil {
				return err
			}

			var db *store.Store
			if user != "" {
				if db, err = openStore(st); err != nil {
					return err
				}
				defer db.Close()
			}

			outcomes, err := sc.ScanMany(cmd.Context(), args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			failed := 0
			for _, o := range outcomes {
				out := ScanOutput{URL: o.URL}
				if o.Err != nil {
					failed++
					out.Error, out.Kind = errorReason(o.Err)
				} else {
					fillResult(&out, o.Result)
					if db != nil {
						a, err := db.SaveAnalysis(cmd.Context(), user, o.URL, o.Result)
						if err != nil {
							return fmt.Errorf("save analysis: %w", err)
						}
						out.AnalysisID = a.ID
					}
				}
				if err := enc.Encode(out); err != nil {
					return err
				}
			}
			if failed == len(outcomes) {
				return fmt.Errorf("all %d scans failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "store results in the history of this user")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "maximum concurrent browsers (0 uses config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-site timeout (0 uses config)")
	return cmd
}

func fillResult(out *ScanOutput, res *model.ScanResult) {
	out.Score = res.Score
	out.Missing = res.Missing
	out.Scripts = res.Scripts
	out.Cookies = res.Cookies
	for _, s := range res.Suggestions {
		out.Suggestions = append(out.Suggestions, s.Text)
	}
}

func errorReason(err error) (reason, kind string) {
	var se *model.ScanError
	if errors.As(err, &se) {
		return se.Reason(), string(se.Kind)
	}
	return err.Error(), ""
}

func openStore(st *state) (*store.Store, error) {
	dbPath, err := st.cfg.DBPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage root directory: %w", err)
	}
	return store.Open(dbPath, st.logger)
}

// ─── history ───────────────────────────────────────────────────────────

func newHistoryCommand(st *state) *cobra.Command {
	var (
		user  string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List a user's stored analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openStore(st)
			if err != nil {
				return err
			}
			defer db.Close()

			analyses, err := db.ListAnalyses(cmd.Context(), user, limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, a := range analyses {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", a.CreatedAt.Format(time.RFC3339), a.ID, a.Score, a.URL)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user whose history to list (required)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum number of analyses")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

// ─── policy ────────────────────────────────────────────────────────────

func newPolicyCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "policy [file]",
		Short: "Review privacy policy text from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			b, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			suggestions, err := policytext.Analyze(string(b))
			if err != nil {
				return err
			}
			st.logger.Debug("policy reviewed", logging.Field{Key: "suggestions", Value: len(suggestions)})
			for _, s := range suggestions {
				fmt.Fprintln(cmd.OutOrStdout(), "-", s)
			}
			return nil
		},
	}
}

// ─── backends ──────────────────────────────────────────────────────────

func newBackendsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered browser backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range browser.ListBackends() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
