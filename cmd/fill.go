package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spigell/autofill/internal/adapter"
	"github.com/spigell/autofill/internal/fill"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/logger"
	"github.com/spigell/autofill/internal/page"
	"github.com/spigell/autofill/internal/profile"
	"github.com/spigell/autofill/internal/tracker"
	"github.com/spigell/autofill/internal/utils"

	"github.com/manifoldco/promptui"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptDone          = "Done"
	PromptShowReport    = "Show full report"
	PromptReportToFile  = "Dump report to file"
	PromptWriteHTML     = "Write filled HTML to file"
	PromptExportAnswers = "Export captured answers to file"
)

var errExit = errors.New("exit requested")

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill one application form with answers from the profile",
	Run: func(cmd *cobra.Command, _ []string) {
		runFill(cmd)
	},
}

func init() {
	rootCmd.AddCommand(fillCmd)

	fillCmd.Flags().StringP("profile", "p", "", "profile document (json or yaml)")
	fillCmd.Flags().StringP("url", "u", "", "url of the application form")
	fillCmd.Flags().StringSlice("html", nil, "local html documents of the form, one per step")
	fillCmd.Flags().Bool("browser", false, "drive a chrome browser instead of a static copy of the page")
	fillCmd.Flags().StringP("out", "o", "", "write the filled html to this file")
	fillCmd.Flags().String("metrics-addr", "", "serve prometheus metrics on this address while running")
	fillCmd.Flags().String("title", "", "title of the job applied for")
	fillCmd.Flags().String("company", "", "company applied to")
	fillCmd.Flags().Bool("no-ai", false, "never ask the generative fallback")
	fillCmd.Flags().Bool("no-history", false, "neither reuse nor remember answers from earlier forms")
	fillCmd.Flags().BoolP("auto-approve", "y", false, "do not ask what to do with the report")

	viper.BindPFlag("profile", fillCmd.Flags().Lookup("profile"))
	viper.BindPFlag("job.title", fillCmd.Flags().Lookup("title"))
	viper.BindPFlag("job.company", fillCmd.Flags().Lookup("company"))
}

// runFill is the main command for the cli.
func runFill(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the autofill", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if strings.TrimSpace(config.Profile) == "" {
		logger.Fatal("profile is required",
			zap.String("hint", "pass --profile, set AUTOFILL_PROFILE or the 'profile' key in the configuration file"),
		)
	}
	p, err := profile.Load(config.Profile)
	if err != nil {
		logger.Fatal("loading the profile", zap.Error(err))
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		shutdown := serveMetrics(addr, logger)
		defer shutdown()
	}

	target, closePage, err := openPage(ctx, sourceFromFlags(cmd), config, logger)
	if err != nil {
		logger.Fatal("opening the form", zap.Error(err))
	}
	defer closePage()

	deps := fill.Deps{
		Adapters: adapter.NewRegistry(logger, utils.DefaultBackoff()),
		Profile:  p,
		Logger:   logger,
	}

	noHistory, _ := cmd.Flags().GetBool("no-history")
	if !noHistory {
		t, cleanup, err := newTracker(ctx, config.Tracker, logger)
		if err != nil {
			logger.Fatal("opening the answer tracker", zap.Error(err))
		}
		defer cleanup()
		deps.Tracker = t
	}

	noAI, _ := cmd.Flags().GetBool("no-ai")
	if !noAI {
		cache, cleanup, err := newCache(config.Cache)
		if err != nil {
			logger.Fatal("creating the answer cache", zap.Error(err))
		}
		defer cleanup()

		deps.Generative, deps.Credentials, err = newGenerative(config.AI, cache, logger)
		if err != nil {
			logger.Warn("skipping the generative fallback", zap.Error(err))
		}
	}

	orchestrator, err := fill.New(deps, fillOptions(config))
	if err != nil {
		logger.Fatal("creating the orchestrator", zap.Error(err))
	}
	if noHistory {
		fill.DisableByName(orchestrator.Stages(), fill.StageHistory, "disabled by --no-history")
	}
	if noAI {
		fill.DisableByName(orchestrator.Stages(), fill.StageGenerative, "disabled by --no-ai")
	}

	report, runErr := orchestrator.Run(ctx, target)
	if err := printReport(os.Stdout, report, viper.GetBool("json")); err != nil {
		logger.Error("printing the report", zap.Error(err))
	}
	if runErr != nil {
		logger.Fatal("fill run aborted", zap.Error(runErr), zap.String("run_id", report.RunID))
	}

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := writeHTML(ctx, target, out); err != nil {
			logger.Fatal("writing the filled form", zap.Error(err))
		}
		logger.Info("filled form written", zap.String("filename", out))
	}

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: []string{PromptDone, PromptShowReport, PromptReportToFile, PromptWriteHTML, PromptExportAnswers},
	}
	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, logger, report, target, deps.Tracker); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Error("action failed", zap.String("action", action), zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, logger *zap.Logger, report *form.Report, target page.Page, t *tracker.Tracker) error {
	switch action {
	case PromptDone:
		logger.Info("exiting", zap.String("reason", "done"))
		return errExit
	case PromptShowReport:
		return printReport(os.Stdout, report, true)
	case PromptReportToFile:
		filename, err := dumpToTmpFile("autofill-report-*.json", report)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptWriteHTML:
		filename := fmt.Sprintf("autofill-%s.html", report.RunID)
		if err := writeHTML(ctx, target, filename); err != nil {
			return err
		}
		logger.Info("filled form written", zap.String("filename", filename))
		return nil
	case PromptExportAnswers:
		if t == nil {
			return errors.New("answer history is disabled")
		}
		filename, err := dumpToTmpFile("autofill-answers-*.json", t.Export())
		if err != nil {
			return fmt.Errorf("export answers: %w", err)
		}
		logger.Info("captured answers exported", zap.String("filename", filename), zap.Int("count", t.Len()))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func fillOptions(config *Config) fill.Options {
	opts := fill.DefaultOptions()
	if c := config.Fill; c != nil {
		if c.MaxSteps > 0 {
			opts.MaxSteps = c.MaxSteps
		}
		if c.ReadyTimeout > 0 {
			opts.ReadyTimeout = c.ReadyTimeout
		}
		if c.WriteDelay > 0 {
			opts.WriteDelay = c.WriteDelay
		}
	}
	if config.Job != nil {
		opts.Job = profile.Job{Title: config.Job.Title, Company: config.Job.Company}
	}
	return opts
}

// pageSource says where the form comes from.
type pageSource struct {
	URL     string
	Files   []string
	Browser bool
}

func sourceFromFlags(cmd *cobra.Command) pageSource {
	var src pageSource
	src.URL, _ = cmd.Flags().GetString("url")
	src.Files, _ = cmd.Flags().GetStringSlice("html")
	src.Browser, _ = cmd.Flags().GetBool("browser")
	return src
}

// openPage returns the form to fill: local documents, a live browser tab or a fetched copy.
func openPage(ctx context.Context, src pageSource, config *Config, logger *zap.Logger) (page.Page, func(), error) {
	rawURL, files := src.URL, src.Files

	switch {
	case len(files) > 0:
		docs := make([]string, 0, len(files))
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, nil, fmt.Errorf("reading %s: %w", file, err)
			}
			docs = append(docs, string(data))
		}
		if rawURL == "" {
			abs, err := filepath.Abs(files[0])
			if err != nil {
				return nil, nil, err
			}
			rawURL = "file://" + abs
		}
		p, err := page.NewStatic(rawURL, docs...)
		return p, func() {}, err
	case rawURL == "":
		return nil, nil, errors.New("either --url or --html is required")
	case src.Browser:
		opts := page.ChromeOptions{Headless: true, Logger: logger}
		if b := config.Browser; b != nil {
			opts.Headless = b.Headless
			opts.Timeout = b.Timeout
		}
		p, err := page.OpenChrome(ctx, rawURL, opts)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	default:
		p, err := page.Fetch(ctx, rawURL, page.FetchOptions{UserAgent: config.UserAgent, Logger: logger})
		return p, func() {}, err
	}
}

func writeHTML(ctx context.Context, target page.Page, filename string) error {
	var html string
	if s, ok := target.(*page.Static); ok {
		var err error
		if html, err = s.HTML(); err != nil {
			return err
		}
	} else {
		doc, err := target.Snapshot(ctx)
		if err != nil {
			return err
		}
		if html, err = doc.Html(); err != nil {
			return err
		}
	}
	return os.WriteFile(filename, []byte(html), 0o644)
}

func serveMetrics(addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func printReport(w io.Writer, report *form.Report, asJSON bool) error {
	if report == nil {
		return nil
	}
	if asJSON {
		return writeJSON(w, report)
	}

	fmt.Fprintf(w, "run %s on %s: %s\n", report.RunID, report.Platform, report.Result)
	fmt.Fprintf(w, "attempted %d, filled %d, verified %d, failed %d, skipped %d in %s\n",
		report.Attempted, report.Filled, report.Verified, report.Failed, report.Skipped, report.Elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tOUTCOME\tSOURCE\tQUESTION\tANSWER")
	for _, rec := range report.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", rec.Step, outcome(rec), rec.Source, rec.Question, utils.TruncateForLog(rec.Answer, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if report.Error != "" {
		fmt.Fprintf(w, "error: %s\n", report.Error)
	}
	return nil
}

func outcome(rec form.Record) string {
	switch {
	case rec.Skipped:
		return "skipped: " + rec.Reason
	case rec.Error != "" || (!rec.Filled && rec.Reason != ""):
		return "failed: " + rec.Reason
	case rec.Verified:
		return "verified"
	case rec.Filled:
		return "filled"
	default:
		return "unfilled"
	}
}

func dumpToTmpFile(pattern string, v any) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := writeJSON(f, v); err != nil {
		return "", err
	}
	return f.Name(), nil
}
