package itc

import (
	"context"
	"fmt"
)

// Options selects and configures a cache backend.
type Options struct {
	Driver Driver
	// Root is the filesystem root for the fs driver.
	Root string
	// S3 configures the s3 driver.
	S3 S3Config
}

// Open constructs the cache backend named by the options. An empty driver
// defaults to memory.
func Open(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Driver {
	case "", DriverMemory:
		return NewMemoryCache(), nil
	case DriverFilesystem:
		return NewFileCache(opts.Root)
	case DriverS3:
		return NewS3Cache(ctx, opts.S3)
	}
	return nil, fmt.Errorf("unknown itc cache driver %q", opts.Driver)
}
