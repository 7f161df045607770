package scanner

import (
	"fmt"
	"os"

	"github.com/peterbourgon/diskv/v3"

	"github.com/soundmesh/streambox/pkg/contenthash"
)

// digestCache memoizes file digests across scans, keyed by path, size and
// mtime, so unchanged files are not rehashed on every run. It lives in its
// own directory, independent from the streaming cache.
type digestCache struct {
	store *diskv.Diskv
}

func newDigestCache(dir string) *digestCache {
	return &digestCache{
		store: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024,
		}),
	}
}

// cacheKey folds path and file identity into a filesystem-safe key. Any
// change to size or mtime produces a new key, leaving the old one to age out.
func cacheKey(path string, info os.FileInfo) string {
	return contenthash.SumBytes([]byte(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())))
}

func (c *digestCache) lookup(path string, info os.FileInfo) (string, bool) {
	data, err := c.store.Read(cacheKey(path, info))
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (c *digestCache) remember(path string, info os.FileInfo, digest string) {
	// Memoization only; a failed write just means rehashing next time
	_ = c.store.Write(cacheKey(path, info), []byte(digest))
}
