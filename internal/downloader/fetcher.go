package downloader

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// Credential is the session material a Fetcher presents to the site
type Credential struct {
	// CookieFile is a Netscape cookies.txt holding the session
	CookieFile string
}

// Fetcher downloads a page with its assets into dir. Implementations must
// stop when ctx is done. The returned log is kept for diagnostics whether
// or not the fetch succeeded.
type Fetcher interface {
	Fetch(ctx context.Context, url, dir string, cred Credential) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface
type FetcherFunc func(ctx context.Context, url, dir string, cred Credential) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url, dir string, cred Credential) ([]byte, error) {
	return f(ctx, url, dir, cred)
}

// wget exit status for "server issued an error response", which
// --page-requisites produces whenever a single asset 404s
const wgetServerError = 8

// WgetFetcher archives pages by running wget. Any non-zero exit fails the
// job, except status 8 (an asset or linked page returned an HTTP error),
// which counts as success unless StrictAssets is set. The page itself was
// saved in that case.
type WgetFetcher struct {
	Path      string
	ExtraArgs []string

	// StrictAssets makes a missing page asset (exit status 8) a failure
	StrictAssets bool
}

// NewWgetFetcher creates a fetcher running the wget binary at path
func NewWgetFetcher(path string, extraArgs []string) *WgetFetcher {
	if path == "" {
		path = "wget"
	}
	return &WgetFetcher{Path: path, ExtraArgs: extraArgs}
}

// Args builds the wget command line for one page
func (f *WgetFetcher) Args(url, dir string, cred Credential) []string {
	args := []string{
		"--adjust-extension",
		"--span-hosts",
		"--no-verbose",
		"--convert-links",
		"--page-requisites",
		"--no-directories",
		"-e", "robots=off",
	}
	if cred.CookieFile != "" {
		args = append(args, "--load-cookies", cred.CookieFile)
	}
	args = append(args, "--output-file", "-", "--directory-prefix", dir)
	args = append(args, f.ExtraArgs...)
	return append(args, url)
}

// Fetch runs wget and returns its combined output
func (f *WgetFetcher) Fetch(ctx context.Context, url, dir string, cred Credential) ([]byte, error) {
	cmd := exec.CommandContext(ctx, f.Path, f.Args(url, dir, cred)...)
	cmd.WaitDelay = 5 * time.Second

	out, err := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == wgetServerError && !f.StrictAssets {
			return out, nil
		}
		return out, fmt.Errorf("wget exited with status %d", exitErr.ExitCode())
	}
	return out, fmt.Errorf("failed to run wget: %w", err)
}
