// Package ratelimit paces requests to the Pinboard index pages.
//
// The crawler calls Wait before each page fetch:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// Unlimited is used in tests where pacing would only slow things down.
package ratelimit
