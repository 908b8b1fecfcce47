package bot

import (
	"time"

	"github.com/relaybot/relaybot/internal/ttlmap"
)

// ImageCache holds at most one pending image per session, cached from an
// earlier turn for image recognition. Entries are single-use: Pop removes
// the entry whether or not the subsequent upload succeeds.
type ImageCache struct {
	entries *ttlmap.Map[string]
}

func NewImageCache(ttl time.Duration) *ImageCache {
	return &ImageCache{entries: ttlmap.New[string](ttl)}
}

// Put caches the local path of an image received for the session.
func (c *ImageCache) Put(sessionID, path string) {
	c.entries.Set(sessionID, path)
}

// Pop removes and returns the cached image path for the session.
func (c *ImageCache) Pop(sessionID string) (string, bool) {
	path, ok := c.entries.Get(sessionID)
	if ok {
		c.entries.Delete(sessionID)
	}
	return path, ok
}
