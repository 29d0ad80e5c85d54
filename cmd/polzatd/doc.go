// Command polzatd runs the crawl and scrape daemon.
//
// Architecture overview:
//   - Gateway: internal/api accepts ScheduleTask calls as JSON over HTTP and
//     pushes each task into the frontier. A full frontier answers 503.
//   - Frontier: internal/frontier orders pending tasks by priority, oldest
//     first among equal priorities.
//   - Scheduler: internal/scheduler polls the frontier and dispatches tasks to
//     a fixed worker pool while the in-flight count is below the thread count.
//     It backs off 500ms when saturated and 250ms when idle.
//   - Executor: internal/executor checks robots.txt through
//     internal/politeness, fetches with colly (Tor hidden services through a
//     SOCKS5 proxy), re-submits discovered links as scrapes, and stores and
//     publishes scrape results.
//
// Configuration comes from an optional YAML file, POLZAT_* environment
// variables and the --thread-count and --port flags, in increasing order of
// precedence. SIGINT or SIGTERM stops the gateway and the scheduler, then
// waits for dispatched tasks; pending tasks are dropped.
package main
