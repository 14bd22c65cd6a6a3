// Package update talks to the plugin distribution service and installs
// plugin packages.
//
// This package handles:
//   - Posting the installed plugin inventory to the update feed and
//     validating the answer against an embedded JSON schema
//   - Looking up install metadata for one plugin version in the plugin directory
//   - Downloading packages, verifying their MD5 checksums and extracting
//     zip or tar.gz archives
//   - Swapping staged plugin directories into place with rollback
//
// The package knows nothing about the host layout or the state database.
// Callers pass in fully resolved target directories.
//
// Example usage:
//
//	feed := update.NewFeedClient(feedURL, update.WithTimeout(30*time.Second))
//	resp, err := feed.Fetch(ctx, update.FeedRequest{Version: v, Branch: "405", Plugins: plugins})
//	if err != nil {
//	    // handle error
//	}
//	for _, u := range resp.Updates {
//	    // cache u
//	}
package update
