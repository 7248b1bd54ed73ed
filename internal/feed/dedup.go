package feed

import "sync"

// Dedup remembers the URLs of posts that were already handed out for
// delivery. Entries are never evicted; the set lives as long as the process.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: map[string]struct{}{}}
}

// Claim records url and reports whether it was new. Once Claim returned true
// for a url, every later call for the same url returns false.
func (d *Dedup) Claim(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[url]; ok {
		return false
	}
	d.seen[url] = struct{}{}
	return true
}

func (d *Dedup) Seen(url string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[url]
	return ok
}

func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
