// Package domain holds the core types shared by the annotation store and
// the batch search pipeline.
package domain

// KeyPrefix namespaces every Redis key owned by docdex.
const KeyPrefix = "docdex:"

// Project is the isolation scope partitioning stars, tags and batch results.
// Deleting a project removes everything stored under it.
type Project string

func (p Project) String() string { return string(p) }

// DocumentRef identifies a document or an embedded sub-part of one.
// RootID is the top-level container document and equals ID for non-embedded
// documents; it is carried for provenance only and is never identity-bearing.
type DocumentRef struct {
	ID     string
	RootID string
	Path   string
}
