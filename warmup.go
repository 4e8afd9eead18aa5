package vkcache

import (
	"fmt"

	"github.com/DrGr4f1x/vkcache/record"
)

// Warmup replays a previously serialized log against this cache, rebuilding
// every recorded object before first real use. Replay drives the same request
// operations the live build path uses, so the rebuilt cache keys are
// identical to the ones the original builds produced, and the attached
// recorder re-captures every miss: Serialize after a pure warmup reproduces
// the input.
//
// A truncated log, an unknown entry tag, or a failed construction aborts the
// warmup with a hard error; partially replayed objects stay cached.
func (c *ResourceCache) Warmup(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	replayer := record.NewReplayer()
	if err := replayer.Play(c, data); err != nil {
		return fmt.Errorf("vkcache: warmup: %w", err)
	}

	Logger().Info("cache warmed", "cache", c.id.String(), "bytes", len(data))
	return nil
}

// Serialize returns the attached recorder's log bytes, capturing every
// object constructed so far. Returns nil when the cache was created with
// recording disabled.
func (c *ResourceCache) Serialize() []byte {
	if c.recorder == nil {
		return nil
	}
	return c.recorder.GetData()
}
