// Package cache holds the in-memory badge image cache. Store is the backing
// key/blob map (an unbounded sync.Map by default, or a bounded LRU), and
// BadgeCache layers the get-or-fetch flow on top: hits are served without any
// upstream call, misses fetch {images_base}/{id}.webp and store only successful
// responses. Entries are immutable once written and live for the process
// lifetime unless the LRU bound evicts them.
package cache
