package pipeline

import "github.com/vodarr/vodarr/internal/storage"

// cleanupSet tracks files written during a run so an aborting stage can
// remove everything the run produced.
type cleanupSet struct {
	paths []string
}

func (c *cleanupSet) add(path string) {
	if path != "" {
		c.paths = append(c.paths, path)
	}
}

func (c *cleanupSet) removeAll() {
	for _, path := range c.paths {
		storage.RemoveQuietly(path)
	}
	c.paths = nil
}
