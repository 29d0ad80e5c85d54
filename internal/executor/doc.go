// Package executor runs admitted tasks. A crawl fetches a page and pushes
// every allowed link back into the frontier as a scrape; a scrape fetches a
// page, stores its body and publishes a result record.
package executor
