// Package politeness decides whether a URL may be fetched under the target
// site's robots.txt. Policies are fetched lazily per domain, compiled into a
// Matcher, and cached for the life of the process; they are never refreshed.
//
// Only rules in wildcard ("User-agent: *") groups are honoured. Disallow
// patterns are prefix exclusions where "*" matches any sequence and every
// other character, "?" included, is literal. A domain whose robots.txt cannot
// be fetched, or answers with a non-2xx status, is treated as allow-all.
// Tor hidden-service URLs bypass the check entirely.
package politeness
