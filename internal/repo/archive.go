package repo

import "time"

// SizeStats holds original/compressed/deduplicated byte counts for an
// archive or a whole repository.
type SizeStats struct {
	OriginalSize     int64 `json:"osize"`
	CompressedSize   int64 `json:"csize"`
	DeduplicatedSize int64 `json:"dsize"`
}

// Archive is one backup snapshot within a repository. Created from the
// archive listing, enriched when per-archive detail is fetched, and
// linked to at most one RunLog by name match.
type Archive struct {
	Name     string     `json:"name"`
	Start    *time.Time `json:"datetime"`
	End      *time.Time `json:"datetime_end"`
	Duration float64    `json:"duration"` // seconds
	Comment  string     `json:"comment"`
	NFiles   int64      `json:"nfiles"`
	Sizes    SizeStats  `json:"sizes"`
	Log      *RunLog    `json:"log"`
}
