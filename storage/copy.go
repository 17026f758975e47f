package storage

import (
	"context"
	"fmt"
)

// Copy streams an object from one provider to another.
func Copy(ctx context.Context, dst Provider, dstID string, src Provider, srcID string) error {
	rc, err := src.Get(ctx, srcID)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", srcID, err)
	}
	defer rc.Close()
	if err := dst.Put(ctx, dstID, rc); err != nil {
		return fmt.Errorf("failed to write %s: %w", dstID, err)
	}
	return nil
}
