// Package blobstore persists raw captures and materialized media as immutable
// objects addressed by relative slash-separated paths.
package blobstore
