// Package fetchcache stores fetched stylesheet bodies on disk between debug
// runs, keyed by URL, under a byte budget pruned oldest-first.
package fetchcache

import (
	"crypto/sha1"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type Cache struct {
	dir string
	max int64
	mu  sync.Mutex
}

// New opens (creating if needed) a cache rooted at dir. maxBytes <= 0 means
// no budget: nothing is ever pruned.
func New(dir string, maxBytes int64) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("fetchcache: empty cache dir")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, max: maxBytes}, nil
}

func (c *Cache) key(url string) (dir, path string) {
	h := sha1.Sum([]byte(url))
	hex := make([]byte, 40)
	const hexd = "0123456789abcdef"
	for i, b := range h[:] {
		hex[i*2] = hexd[b>>4]
		hex[i*2+1] = hexd[b&0xF]
	}
	dir = filepath.Join(c.dir, string(hex[0]), string(hex[1]))
	return dir, filepath.Join(dir, string(hex)+".css")
}

// Get returns the cached body for a URL. A hit refreshes the entry's mtime
// so pruning treats it as recently used.
func (c *Cache) Get(url string) (string, bool) {
	_, path := c.key(url)
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return string(b), true
}

// Put stores a body under its URL and prunes the cache back under budget.
// Failures are silent: the cache is an optimization, never a requirement.
func (c *Cache) Put(url, body string) {
	dir, path := c.key(url)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(body), 0o644); err != nil {
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return
	}
	c.prune()
}

func (c *Cache) prune() {
	if c.max <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var files []struct {
		p  string
		sz int64
		mt time.Time
	}
	var total int64
	filepath.WalkDir(c.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(strings.ToLower(p), ".css") {
			return nil
		}
		if info, e := d.Info(); e == nil {
			files = append(files, struct {
				p  string
				sz int64
				mt time.Time
			}{p, info.Size(), info.ModTime()})
			total += info.Size()
		}
		return nil
	})
	if total <= c.max {
		return
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mt.Before(files[j].mt) })
	for _, f := range files {
		if total <= c.max {
			break
		}
		_ = os.Remove(f.p)
		total -= f.sz
	}
}
