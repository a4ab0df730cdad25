package blob

import (
	"context"
	"fmt"
	"strings"
)

// Config selects and configures a driver. An empty driver means fs.
type Config struct {
	Driver Driver
	Root   string
	S3     S3Config
}

// Open constructs the store named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch Driver(strings.ToLower(string(cfg.Driver))) {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.Root)
	case DriverMemory:
		return NewMemory(), nil
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}
