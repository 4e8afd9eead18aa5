// Package vkcache is a deduplicating cache for expensive, derived GPU
// objects: compiled shader stages, pipeline layouts, descriptor-set layouts,
// descriptor pools and sets, render passes, graphics and compute pipelines,
// and framebuffers.
//
// Every Request operation hashes its construction parameters into a content
// key and builds at most one object per key, sharing the result with every
// later equal request. Construction goes through a narrow [driver.Device]
// contract; driver/null provides an in-memory device for tests and tooling.
//
// # Warmup
//
// An attached recorder captures the parameters of every cache miss as an
// append-only tagged log. Serialize exports the log; Warmup replays one into
// a fresh cache, re-invoking the same request operations in the recorded
// order so the rebuilt cache keys match the originals exactly. This moves
// first-use shader and pipeline construction out of the render loop.
//
// # Descriptor management
//
// Descriptor pools grow by chaining fixed-capacity driver sub-pools and bias
// allocation back toward freed capacity. Descriptor sets hash every prepared
// write entry and skip device updates whose content has not changed since
// the last application. [FrameResources] partitions per-frame descriptor
// state by worker thread so intra-frame allocation needs no locks.
package vkcache
