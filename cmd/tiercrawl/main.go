package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/osintkit/tiercrawl/internal/core"
	"github.com/osintkit/tiercrawl/internal/crawlers"
	"github.com/osintkit/tiercrawl/internal/models"
	"github.com/osintkit/tiercrawl/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	// global flags
	configFile string
	logLevel   string

	// crawl flags
	urlFile          string
	outputFile       string
	concurrent       int
	perDomain        int
	timeoutSec       int
	delayMs          int
	userAgent        string
	headerFlags      []string
	countryTLDs      []string
	urlKeywords      []string
	outputFormat     string
	detectJS         bool
	includeHTML      bool
	renderConcurrent int
	settleMs         int
	reportPath       string
	headless         bool
	noProgress       bool

	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "tiercrawl",
	Short: "Tiered web retrieval engine",
	Long: `tiercrawl fetches batches of URLs through an escalating chain of
retrieval tiers: a fast static HTTP pass, a high-volume static crawl, a
headless-browser rendering pass, and optionally a commercial fetch API.

Pages that turn out to be JavaScript-rendered shells, and targets that look
bot-blocked, automatically move up to the next tier. Every input URL yields
exactly one result.

Version: ` + Version,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logConfig := utils.LogConfig{
			Level:      config.Logging.Level,
			LogDir:     config.Logging.LogDir,
			MaxSize:    config.Logging.Rotation.MaxSize,
			MaxBackups: config.Logging.Rotation.MaxBackups,
			MaxAge:     config.Logging.Rotation.MaxAge,
			Compress:   config.Logging.Rotation.Compress,
		}
		if logLevel != "" {
			logConfig.Level = logLevel
		}
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		appConfig = config
		return nil
	},
}

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl a batch of URLs through the tier chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergeFlags(cmd)
		if err != nil {
			return err
		}

		targets, err := utils.LoadTargets(urlFile)
		if err != nil {
			return err
		}
		if len(cfg.Headers) > 0 {
			utils.Infof("custom headers: %s", utils.RedactHeadersToString(cfg.Headers))
		}

		out := os.Stdout
		if outputFile != "" && outputFile != "-" {
			f, err := os.Create(outputFile)
			if err != nil {
				return fmt.Errorf("create output file: %w", err)
			}
			defer f.Close()
			out = f
		}

		format := appConfig.Output.Format
		if cmd.Flags().Changed("format") {
			format = outputFormat
		}
		if reportPath == "" {
			reportPath = appConfig.Output.Report
		}

		chain := []crawlers.Fetcher{
			crawlers.NewStaticFetcher(models.TierStaticFast, cfg, cfg.Concurrency),
			crawlers.NewCollyFetcher(cfg),
			crawlers.NewRenderFetcher(cfg),
		}
		if appConfig.Paid.Enabled() {
			chain = append(chain, crawlers.NewPaidFetcher(cfg, appConfig.Paid))
		}

		orch, err := core.NewTierOrchestrator(cfg, chain...)
		if err != nil {
			return err
		}
		utils.Infof("run %s: %d targets, %d tiers", orch.RunID(), len(targets), len(chain))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var bar = utils.NewProgressBar(len(targets), "crawling")
		if noProgress {
			bar = nil
		}
		writer, err := core.NewResultWriter(out, format, bar)
		if err != nil {
			return err
		}

		start := time.Now()
		results := make(chan models.CrawlResult, cfg.Concurrency)
		runErr := make(chan error, 1)
		go func() {
			runErr <- orch.Run(ctx, targets, results)
			close(results)
		}()

		if err := writer.Consume(results); err != nil {
			return err
		}
		stats, err := writer.Finish(time.Since(start))
		if err != nil {
			return err
		}

		if reportPath != "" {
			if err := utils.WriteReport(reportPath, orch.RunID(), cfg, stats); err != nil {
				utils.Errorf("write report: %v", err)
			}
		}

		utils.Infof("done: %d total, %d ok, %d failed, %d needed js, %.1f urls/s",
			stats.Total, stats.Success, stats.Failed, stats.NeedsJS, stats.Throughput())
		for tier, count := range stats.PerTier {
			utils.Infof("  tier %-12s %d", tier, count)
		}

		if err := <-runErr; err != nil {
			return fmt.Errorf("crawl finished with tier failure: %w", err)
		}
		return nil
	},
}

var testCmd = &cobra.Command{
	Use:   "test <url>",
	Short: "Run a single URL through the tier chain and print the result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := mergeFlags(cmd)
		if err != nil {
			return err
		}
		// One URL never needs the full static budget.
		cfg.Concurrency = 1
		cfg.RenderConcurrency = 1

		rawURL, err := models.NormalizeURL(args[0])
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if err := models.ValidateURL(rawURL); err != nil {
			return err
		}

		chain := []crawlers.Fetcher{
			crawlers.NewStaticFetcher(models.TierStaticFast, cfg, 1),
			crawlers.NewCollyFetcher(cfg),
			crawlers.NewRenderFetcher(cfg),
		}
		if appConfig.Paid.Enabled() {
			chain = append(chain, crawlers.NewPaidFetcher(cfg, appConfig.Paid))
		}
		orch, err := core.NewTierOrchestrator(cfg, chain...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := orch.Test(ctx, rawURL)
		if err != nil {
			utils.Warnf("tier failure: %v", err)
		}
		data, err := result.ToJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tiercrawl %s\n", Version)
		fmt.Printf("built: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")

	for _, cmd := range []*cobra.Command{crawlCmd, testCmd} {
		cmd.Flags().IntVar(&concurrent, "concurrent", 0, "global static concurrency")
		cmd.Flags().IntVar(&perDomain, "per-domain", 0, "max in-flight requests per domain")
		cmd.Flags().IntVar(&timeoutSec, "timeout", 0, "per-request timeout in seconds")
		cmd.Flags().IntVar(&delayMs, "delay", 0, "per-domain delay between requests in milliseconds")
		cmd.Flags().StringVarP(&userAgent, "user-agent", "A", "", "User-Agent header")
		cmd.Flags().StringSliceVarP(&headerFlags, "header", "H", nil, "custom header 'Name: Value', repeatable")
		cmd.Flags().StringSliceVar(&countryTLDs, "country-tlds", nil, "keep external links whose host ends in one of these TLDs")
		cmd.Flags().StringSliceVar(&urlKeywords, "url-keywords", nil, "keep external links containing one of these substrings")
		cmd.Flags().BoolVar(&detectJS, "detect-js", true, "classify pages as JS-dependent")
		cmd.Flags().BoolVar(&includeHTML, "include-html", false, "include raw HTML in results")
		cmd.Flags().IntVar(&renderConcurrent, "render-concurrent", 0, "browser tab concurrency")
		cmd.Flags().IntVar(&settleMs, "settle", 0, "post-load settle delay in milliseconds")
		cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	}

	crawlCmd.Flags().StringVarP(&urlFile, "urls", "f", "-", "target file: JSON array or one URL per line, '-' for stdin")
	crawlCmd.Flags().StringVarP(&outputFile, "output", "o", "-", "output file, '-' for stdout")
	crawlCmd.Flags().StringVar(&outputFormat, "format", core.FormatNDJSON, "output format (ndjson|json)")
	crawlCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON run report to this path")
	crawlCmd.Flags().BoolVar(&noProgress, "no-progress", false, "disable the progress bar")

	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
