// Package pinboard implements the parts of pinback that talk to the
// Pinboard web site: logging in, walking a user's bookmark index, and
// handing the resulting session to external tools.
//
// A typical run logs in, then crawls through the same client:
//
//	client, _ := pinboard.NewClient(pinboard.BaseURL, 30*time.Second, log)
//	if _, err := pinboard.NewAuthenticator(client).Login(ctx, user, pass); err != nil {
//	    return err
//	}
//	entries, err := pinboard.NewCrawler(client, ratelimit.PerMinute(60), log).Crawl(ctx, user)
//
// Index pages are parsed with goquery. ExtractPage has no side effects and
// can be tested against static HTML.
package pinboard
