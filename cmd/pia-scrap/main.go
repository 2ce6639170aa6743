package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bayue48/pia-scrap/internal/core"
	"github.com/bayue48/pia-scrap/internal/models"
	"github.com/bayue48/pia-scrap/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	// global flags
	configFile string
	verbose    bool
	logLevel   string

	// credentials
	email      string
	password   string
	cookiesTxt string

	// crawl flags
	mode        string
	maxChapters int
	throttle    float64
	proxy       string
	outputDir   string
	sessionFile string
	headless    bool
	language    string
)

var interrupted = errors.New("interrupted")

var rootCmd = &cobra.Command{
	Use:   "pia-scrap <work-id-or-url>",
	Short: "Downloads a web novel and packages it as an EPUB",
	Long: `pia-scrap - web novel downloader and EPUB packager

Fetches a novel's metadata and every readable chapter, either through the
JSON API (with an account session) or through a rendered browser surface,
then packages the result as an EPUB with cover, table of contents and
embedded images.

Usage examples:
  # with an account (API path, fastest)
  pia-scrap 123456 --email you@example.com --password secret

  # with an exported cookies.txt
  pia-scrap https://global.novelpia.com/novel/123456 --cookies cookies.txt

  # anonymously through the browser, free chapters only
  pia-scrap 123456 --mode browser

Version: ` + Version,
	Version: Version,
	Args:    cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logCfg := cfg.LoggerConfig()
		if logLevel != "" {
			logCfg.Level = logLevel
		}
		if verbose {
			logCfg.Level = "debug"
		}
		if err := utils.InitLogger(logCfg); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		caught := false
		go func() {
			sig := <-sigChan
			utils.Warnf("caught %v, finishing the current chapter and packaging what we have...", sig)
			caught = true
			cancel()
			<-sigChan
			os.Exit(130)
		}()

		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg.MergeCLIFlags(core.CLIFlags{
			Mode:        mode,
			MaxChapters: maxChapters,
			Throttle:    throttle,
			Proxy:       proxy,
			OutDir:      outputDir,
			SessionFile: sessionFile,
			Headless:    headless,
			HeadlessSet: cmd.Flags().Changed("headless"),
			Language:    language,
			Verbose:     verbose,
		})
		if err := cfg.Crawl.Validate(); err != nil {
			return err
		}

		crawler, err := core.NewCrawler(cfg, core.Options{
			WorkRef:    args[0],
			Email:      email,
			Password:   password,
			CookiesTxt: cookiesTxt,
		})
		if err != nil {
			return err
		}

		stats, err := crawler.Run(ctx)
		if stats != nil {
			printStats(stats)
		}
		if err != nil {
			return err
		}
		if caught {
			return interrupted
		}
		utils.Info("all done")
		return nil
	},
}

func printStats(stats *models.CrawlStats) {
	fmt.Println("\n==================================================")
	fmt.Printf("mode:        %s\n", stats.Mode)
	fmt.Printf("discovered:  %d\n", stats.Discovered)
	fmt.Printf("fetched:     %d\n", stats.Fetched)
	fmt.Printf("skipped:     %d\n", stats.Skipped)
	fmt.Printf("failed:      %d\n", stats.Failed)
	if stats.PagesSeen > 0 {
		fmt.Printf("pages seen:  %d\n", stats.PagesSeen)
	}
	if stats.Refreshes > 0 {
		fmt.Printf("refreshes:   %d\n", stats.Refreshes)
	}
	fmt.Printf("duration:    %.1fs\n", stats.Duration)
	if stats.OutputFile != "" {
		fmt.Printf("output:      %s\n", stats.OutputFile)
	}
	fmt.Println("==================================================")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pia-scrap %s\n", Version)
		fmt.Printf("built: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")

	rootCmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	rootCmd.Flags().StringVar(&cookiesTxt, "cookies", "", "Netscape cookies.txt exported from a logged-in browser")

	rootCmd.Flags().StringVarP(&mode, "mode", "m", "", "acquisition mode (auto|api|browser)")
	rootCmd.Flags().IntVarP(&maxChapters, "max-chapters", "n", 0, "stop after this many chapters (0 = all)")
	rootCmd.Flags().Float64Var(&throttle, "throttle", -1, "seconds between chapter requests")
	rootCmd.Flags().StringVar(&proxy, "proxy", "", "proxy URL for all traffic")
	rootCmd.Flags().StringVarP(&outputDir, "out", "o", "", "output directory")
	rootCmd.Flags().StringVar(&sessionFile, "session-file", "", "session persistence file")
	rootCmd.Flags().BoolVar(&headless, "headless", true, "headless browser mode")
	rootCmd.Flags().StringVar(&language, "lang", "", "Accept-Language for the browser surface")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		switch {
		case errors.Is(err, interrupted):
			os.Exit(130)
		case errors.Is(err, models.ErrCredentialsMissing):
			fmt.Fprintln(os.Stderr, "error: credentials required; pass --email/--password or --cookies")
			os.Exit(2)
		default:
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}
