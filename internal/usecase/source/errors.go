// Package source provides read-only use cases for querying news feed sources:
// listing, filtering, and multi-keyword search.
package source
