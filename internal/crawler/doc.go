// Package crawler defines the task model and the interfaces shared by the
// frontier, scheduler, politeness validator, and executor.
package crawler
