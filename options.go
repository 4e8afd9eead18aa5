package vkcache

import "github.com/DrGr4f1x/vkcache/resource"

// Option configures a ResourceCache during creation.
//
// Example:
//
//	// Default: naga compiler, 16 sets per sub-pool, recording on.
//	cache := vkcache.New(device)
//
//	// Custom compiler and larger sub-pools:
//	cache := vkcache.New(device,
//	    vkcache.WithCompiler(myCompiler),
//	    vkcache.WithPoolSize(64))
type Option func(*cacheOptions)

// cacheOptions holds optional configuration for cache creation.
type cacheOptions struct {
	compiler  resource.Compiler
	poolSize  uint32
	recording bool
}

// defaultCacheOptions returns the default cache options.
func defaultCacheOptions() cacheOptions {
	return cacheOptions{
		compiler:  resource.NagaCompiler{},
		poolSize:  resource.DefaultPoolSize,
		recording: true,
	}
}

// WithCompiler sets the shader compiler invoked on shader module misses.
// Use this to substitute a cross-compiler or a test double for the default
// naga WGSL compiler.
func WithCompiler(c resource.Compiler) Option {
	return func(o *cacheOptions) {
		if c != nil {
			o.compiler = c
		}
	}
}

// WithPoolSize sets how many descriptor sets each driver sub-pool holds.
// Zero keeps resource.DefaultPoolSize.
func WithPoolSize(n uint32) Option {
	return func(o *cacheOptions) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithRecording enables or disables the construction recorder. With
// recording disabled Serialize returns nil; Warmup still works.
func WithRecording(enabled bool) Option {
	return func(o *cacheOptions) {
		o.recording = enabled
	}
}
