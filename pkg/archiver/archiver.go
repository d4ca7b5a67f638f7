package archiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pinback/internal/downloader"
	"pinback/pkg/checkpoint"
	"pinback/pkg/config"
	pberrors "pinback/pkg/errors"
	"pinback/pkg/logger"
	"pinback/pkg/models"
	"pinback/pkg/pinboard"
	"pinback/pkg/ratelimit"
	"pinback/pkg/ui"
)

// Archiver orchestrates login, crawl and download for one account
type Archiver struct {
	config      *config.Config
	fetcher     downloader.Fetcher
	rateLimiter ratelimit.Limiter
	checkpoints *checkpoint.Manager
	observer    ui.Observer
	logger      logger.Logger
}

// New creates an Archiver that fetches with wget as configured
func New(cfg *config.Config) (*Archiver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
	}

	wget := downloader.NewWgetFetcher(cfg.Archive.WgetPath, cfg.Archive.ExtraArgs)
	wget.StrictAssets = cfg.Archive.StrictAssets

	return &Archiver{
		config:      cfg,
		fetcher:     wget,
		rateLimiter: limiter,
		observer:    ui.Silent{},
		logger:      logger.GetLogger(),
	}, nil
}

// SetObserver routes progress to a console display or the TUI
func (a *Archiver) SetObserver(o ui.Observer) {
	if o == nil {
		o = ui.Silent{}
	}
	a.observer = o
}

// SetFetcher replaces the wget fetcher
func (a *Archiver) SetFetcher(f downloader.Fetcher) {
	a.fetcher = f
}

// SetCheckpointManager overrides where the crawl checkpoint is kept
func (a *Archiver) SetCheckpointManager(m *checkpoint.Manager) {
	a.checkpoints = m
}

// SetLogger replaces the global logger for this archiver
func (a *Archiver) SetLogger(l logger.Logger) {
	a.logger = l
}

// Run performs one backup. With resume set, a saved crawl for the same
// user replaces the index walk. The error is non-nil only when the run
// stopped before dispatching; per-job failures are in the Report.
func (a *Archiver) Run(ctx context.Context, resume bool) (*models.Report, error) {
	username := a.config.Pinboard.Username
	password := a.config.Pinboard.Password
	if username == "" || password == "" {
		return nil, pberrors.NewAuthError("username and password are required", 0)
	}

	log := a.logger.WithField("username", username)
	logger.LogComponentStart(a.logger, "archiver", map[string]interface{}{
		"username":    username,
		"output_dir":  a.config.Output.BaseDirectory,
		"concurrency": a.config.Archive.Concurrency,
		"resume":      resume,
	})

	a.observer.LoggingIn()
	client, err := a.login(ctx, username, password)
	if err != nil {
		a.observer.LogError("Login failed: %v", err)
		return nil, err
	}
	log.Info("Logged in to Pinboard")

	entries, err := a.collect(ctx, client, username, resume)
	if err != nil {
		a.observer.LogError("Crawl failed: %v", err)
		return nil, err
	}

	// the downloader runs out of process and needs a session of its own
	downloadSession, err := a.session(ctx, username, password)
	if err != nil {
		a.observer.LogError("Login for downloads failed: %v", err)
		return nil, err
	}

	runDir, err := os.MkdirTemp("", "pinback-")
	if err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	defer os.RemoveAll(runDir)

	cookieFile := filepath.Join(runDir, pinboard.CookieFileName)
	if err := pinboard.WriteCookieFile(downloadSession, cookieFile); err != nil {
		return nil, fmt.Errorf("failed to write cookie file: %w", err)
	}

	a.observer.ArchiveStarted(len(entries))
	dispatcher := &downloader.Dispatcher{
		Fetcher:    a.fetcher,
		Credential: downloader.Credential{CookieFile: cookieFile},
		BaseURL:    a.config.Pinboard.BaseURL,
		JobTimeout: a.config.Archive.JobTimeout,
		Logger:     a.logger,
		OnStart:    a.observer.JobStarted,
		OnResult:   a.observer.JobFinished,
	}

	report, err := dispatcher.Dispatch(ctx, entries, a.config.Output.BaseDirectory, a.config.Archive.Concurrency)
	if err != nil {
		return nil, err
	}

	if !report.HasFailures() && a.checkpoints != nil {
		if err := a.checkpoints.Delete(); err != nil {
			log.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	a.observer.Finished(report)
	logger.LogComponentStop(a.logger, "archiver", report.String())
	return report, nil
}

// login signs in and returns a client carrying the session
func (a *Archiver) login(ctx context.Context, username, password string) (*pinboard.Client, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	token, err := pinboard.NewAuthenticator(client).Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	client.UseSession(token)
	return client, nil
}

// session performs an independent login and returns only its cookies
func (a *Archiver) session(ctx context.Context, username, password string) (*pinboard.SessionToken, error) {
	client, err := a.newClient()
	if err != nil {
		return nil, err
	}
	return pinboard.NewAuthenticator(client).Login(ctx, username, password)
}

func (a *Archiver) newClient() (*pinboard.Client, error) {
	client, err := pinboard.NewClient(a.config.Pinboard.BaseURL, a.config.Pinboard.RequestTimeout, a.logger)
	if err != nil {
		return nil, err
	}
	if ua := a.config.Pinboard.UserAgent; ua != "" {
		client.SetHeader("User-Agent", ua)
	}
	return client, nil
}

// collect returns the cache entries to archive, from a checkpoint when
// resuming or from a fresh crawl, which is then checkpointed.
func (a *Archiver) collect(ctx context.Context, client *pinboard.Client, username string, resume bool) ([]models.CacheEntry, error) {
	log := a.logger.WithField("username", username)

	if a.checkpoints == nil {
		mgr, err := checkpoint.NewManager(username)
		if err != nil {
			log.WithError(err).Warn("Checkpoints unavailable")
		} else {
			a.checkpoints = mgr
		}
	}

	if resume && a.checkpoints != nil {
		cp, err := a.checkpoints.Load()
		if err != nil {
			log.WithError(err).Warn("Ignoring unreadable checkpoint")
		} else if cp != nil {
			entries := cp.Entries()
			log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"entries":    len(entries),
				"crawled_at": cp.CrawledAt.Format(time.RFC3339),
			})
			a.observer.LogInfo("Resuming with %d cached links crawled %s", len(entries), cp.CrawledAt.Format(time.RFC822))
			return entries, nil
		}
	}

	crawler := pinboard.NewCrawler(client, a.rateLimiter, a.logger)
	crawler.OnPage = func(p pinboard.PageProgress) {
		a.observer.CrawledPage(p.Page, p.PageEntries, p.Total)
	}

	entries, err := crawler.Crawl(ctx, username)
	if err != nil {
		return nil, err
	}

	if a.checkpoints != nil {
		if err := a.checkpoints.Save(checkpoint.New(username, entries)); err != nil {
			log.WithError(err).Warn("Failed to save checkpoint")
		}
	}
	return entries, nil
}
