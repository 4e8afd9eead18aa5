package vkcache

import (
	"errors"
	"fmt"

	"github.com/DrGr4f1x/vkcache/driver"
	"github.com/DrGr4f1x/vkcache/resource"
)

// ErrViewCountMismatch is returned when the old and new view lists differ in
// length.
var ErrViewCountMismatch = errors.New("vkcache: old and new view counts differ")

// UpdateDescriptorSets rewrites every cached descriptor set binding that
// references oldViews[i] to reference newViews[i], typically after a resize
// recreated the underlying images.
//
// Because a descriptor set's cache key is a hash over its bound content, each
// rewritten set is re-keyed: deleted under its stale key and re-inserted
// under the hash of the new bindings. All rewritten bindings across all
// affected sets go to the device in one batched update. The whole rewrite
// holds the descriptor-set store's lock, so concurrent set requests observe
// either the old or the new keys, never a mix.
func (c *ResourceCache) UpdateDescriptorSets(oldViews, newViews []driver.ImageView) error {
	if len(oldViews) != len(newViews) {
		return fmt.Errorf("%w: %d vs %d", ErrViewCountMismatch, len(oldViews), len(newViews))
	}
	if len(oldViews) == 0 {
		return nil
	}

	replace := make(map[driver.ImageView]driver.ImageView, len(oldViews))
	for i, old := range oldViews {
		replace[old] = newViews[i]
	}

	var (
		writes  []driver.WriteDescriptorSet
		updated int
		err     error
	)
	c.descriptorSets.Mutate(func(entries map[uint64]*resource.DescriptorSet) {
		type rekey struct {
			oldKey uint64
			newKey uint64
			set    *resource.DescriptorSet
		}
		var rekeys []rekey

		for key, set := range entries {
			var affected bool
			for old, next := range replace {
				if ws := set.SwapImageView(old, next); len(ws) > 0 {
					writes = append(writes, ws...)
					affected = true
				}
			}
			if !affected {
				continue
			}
			rekeys = append(rekeys, rekey{oldKey: key, newKey: set.Rehash(), set: set})
		}

		for _, rk := range rekeys {
			delete(entries, rk.oldKey)
			entries[rk.newKey] = rk.set
		}
		updated = len(rekeys)

		if len(writes) > 0 {
			err = c.device.UpdateDescriptorSets(writes)
		}
	})
	if err != nil {
		return fmt.Errorf("vkcache: update descriptor sets: %w", err)
	}

	if updated > 0 {
		Logger().Debug("rewrote descriptor sets for view swap",
			"cache", c.id.String(),
			"sets", updated,
			"writes", len(writes))
	}
	return nil
}
