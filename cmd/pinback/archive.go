package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"pinback/pkg/archiver"
	"pinback/pkg/config"
	"pinback/pkg/logger"
	"pinback/pkg/models"
	"pinback/pkg/storage"
	"pinback/pkg/ui"
	"pinback/pkg/ui/tui"
)

var (
	// Archive command flags
	username    string
	password    string
	outputDir   string
	concurrency int
	jobTimeout  time.Duration
	rateLimit   int
	resumeCrawl bool
	useTUI      bool
)

// archiveCmd represents the archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Download every archived page of an account",
	Long: `Sign in to Pinboard, collect the archived copy of every bookmark from the
account's index pages and mirror each one with wget into
<output-directory>/<bookmark id>.

Bookmarks whose directory already exists are skipped. The crawl is saved as
a checkpoint so --resume can skip it after an interrupted run; the
checkpoint is removed once every page has been archived.

Credentials are taken from flags, PINBACK_USERNAME and PINBACK_PASSWORD,
the configuration file or the credential store ('pinback auth login'). A
missing password is prompted for.`,
	Example: `  # Archive into ./pinboard with 32 parallel downloads
  pinback archive -u maciej

  # Fewer downloads at a time, into a different directory
  pinback archive -u maciej -o ~/backups/pinboard -c 8

  # Reuse the last crawl after an interrupted run
  pinback archive --resume

  # Watch progress in the interactive dashboard
  pinback archive --tui`,
	Args: cobra.NoArgs,
	RunE: runArchive,
}

func init() {
	rootCmd.AddCommand(archiveCmd)

	archiveCmd.Flags().StringVarP(&username, "username", "u", "", "Pinboard username")
	archiveCmd.Flags().StringVarP(&password, "password", "p", "", "Pinboard password (prompted for when missing)")
	archiveCmd.Flags().StringVarP(&outputDir, "output-directory", "o", "pinboard", "directory to archive pages into")
	archiveCmd.Flags().IntVarP(&concurrency, "concurrency", "c", config.DefaultConcurrency, "number of pages downloaded at once")
	archiveCmd.Flags().DurationVar(&jobTimeout, "job-timeout", config.DefaultJobTimeout, "time limit for a single page download")
	archiveCmd.Flags().IntVar(&rateLimit, "rate-limit", 60, "index pages requested per minute")
	archiveCmd.Flags().BoolVar(&resumeCrawl, "resume", false, "reuse the saved crawl instead of walking the index again")
	archiveCmd.Flags().BoolVar(&useTUI, "tui", false, "use interactive terminal UI with real-time progress")
}

// archiveFlags builds the config.Load flag map. Only flags set on the
// command line override the configuration file.
func archiveFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags(cmd)
	if username != "" {
		flags["username"] = username
	}
	if password != "" {
		flags["password"] = password
	}
	if cmd.Flags().Changed("output-directory") {
		flags["output-directory"] = outputDir
	}
	if cmd.Flags().Changed("concurrency") {
		flags["concurrency"] = concurrency
	}
	if cmd.Flags().Changed("job-timeout") {
		flags["job-timeout"] = jobTimeout
	}
	if cmd.Flags().Changed("rate-limit") {
		flags["rate-limit"] = rateLimit
	}

	// keep console logs from tearing the progress line or the dashboard
	if logLevel == "" && !verbose {
		if useTUI {
			flags["log-level"] = "disabled"
		} else {
			flags["log-level"] = "error"
		}
	}
	return flags
}

func runArchive(cmd *cobra.Command, args []string) error {
	if concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	cfg, err := loadConfig(archiveFlags(cmd))
	if err != nil {
		return err
	}

	if err := resolveCredentials(cfg, credentialManager(), newTerminalPrompter()); err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"username":    cfg.Pinboard.Username,
		"output_dir":  cfg.Output.BaseDirectory,
		"concurrency": cfg.Archive.Concurrency,
	}).Info("Starting archive")

	a, err := archiver.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize archiver: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	notifier := ui.NewNotifier(cfg.Notifications.Enabled, cfg.Notifications.OnComplete, cfg.Notifications.OnError)

	var report *models.Report
	if useTUI {
		report, err = runWithTUI(ctx, a, cfg)
	} else {
		if !quiet {
			ui.PrintInfo("Account", cfg.Pinboard.Username)
			ui.PrintInfo("Output", cfg.Output.BaseDirectory)
			a.SetObserver(ui.NewProgressDisplay(cfg.Pinboard.Username, verbose))
		}
		report, err = a.Run(ctx, resumeCrawl)
	}

	if err != nil {
		logger.WithError(err).WithField("username", cfg.Pinboard.Username).Error("Archive failed")
		if nerr := notifier.NotifyError(cfg.Pinboard.Username, err); nerr != nil {
			logger.WithError(nerr).Warn("Failed to send notification")
		}
		return err
	}

	if nerr := notifier.NotifyReport(cfg.Pinboard.Username, report); nerr != nil {
		logger.WithError(nerr).Warn("Failed to send notification")
	}

	if !quiet {
		printArchiveSize(cfg.Output.BaseDirectory)
	}
	if err := reportError(report); err != nil {
		return err
	}
	if !quiet {
		ui.PrintSuccess("Backup complete")
	}
	return nil
}

// reportError turns failed or timed-out jobs into the command's error, and
// so into a non-zero exit status
func reportError(report *models.Report) error {
	if !report.HasFailures() {
		return nil
	}
	return fmt.Errorf("%d of %d pages were not archived", len(report.Failed()), report.Total())
}

// printArchiveSize reports how many bookmarks the output directory holds,
// including those archived by earlier runs
func printArchiveSize(dir string) {
	store, err := storage.NewManager(dir)
	if err != nil {
		return
	}
	count, err := store.ArchivedCount()
	if err != nil {
		logger.WithError(err).Warn("Failed to count archived pages")
		return
	}
	ui.PrintInfo("Archived bookmarks", fmt.Sprintf("%d in %s", count, store.OutputDir()))
}

type runResult struct {
	report *models.Report
	err    error
}

// runWithTUI runs the archiver behind the dashboard. Quitting the
// dashboard cancels the run.
func runWithTUI(ctx context.Context, a *archiver.Archiver, cfg *config.Config) (*models.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	terminal := tui.NewTUI(cfg.Pinboard.Username, cfg.Archive.Concurrency)
	a.SetObserver(terminal)

	runDone := make(chan runResult, 1)
	go func() {
		report, err := a.Run(ctx, resumeCrawl)
		runDone <- runResult{report: report, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		tuiDone <- terminal.Start()
	}()

	var res runResult
	select {
	case res = <-runDone:
		terminal.Stop()
		<-tuiDone
	case err := <-tuiDone:
		if err != nil {
			logger.WithError(err).Error("TUI failed")
		}
		cancel()
		res = <-runDone
	}

	if res.report != nil && !quiet {
		printReport(res.report)
	}
	return res.report, res.err
}

// printReport repeats the summary once the dashboard has left the screen
func printReport(report *models.Report) {
	if !report.HasFailures() {
		ui.PrintSuccess(report.String())
		return
	}
	ui.PrintWarning(report.String())
	for _, job := range report.Failed() {
		fmt.Fprintf(os.Stderr, "  - %s %s\n", job.Entry.BookmarkID(), job.Reason)
	}
}
