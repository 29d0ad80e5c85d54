// Package storage groups the crawler.BlobStore implementations that hold
// scraped page bodies: memory (default), local filesystem, and Google Cloud
// Storage. Select one with storage.local_dir or storage.gcs_bucket.
package storage
