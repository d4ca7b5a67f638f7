// Package archiver runs a complete Pinboard backup for one account.
//
// A run has three sequential stages followed by a parallel one:
//
//  1. Log in with the account's username and password. A failed login
//     ends the run before any page is requested.
//  2. Walk the account's index pages and collect every cached snapshot
//     link, or reuse the checkpoint left by an earlier complete crawl.
//  3. Log in a second time and write that session to a cookies.txt file
//     in a temporary directory owned by the run.
//  4. Hand every snapshot to the downloader, which archives each one into
//     <output>/<bookmark id> with bounded concurrency.
//
// Usage:
//
//	cfg := config.DefaultConfig()
//	cfg.Pinboard.Username = "maciej"
//	cfg.Pinboard.Password = "..."
//
//	a, err := archiver.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report, err := a.Run(ctx, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(report)
//
// The returned Report lists every job. A non-nil error means the run
// never reached the download stage.
package archiver
