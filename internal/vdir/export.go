package vdir

import (
	"context"
	"os"
	"path/filepath"
)

// Export implements VirtualDirectory: materializes cd's tree onto a real
// filesystem path, used when handing a build sandbox its inputs or when
// staging an artifact for inspection (spec §4.3).
func (cd *CASDirectory) Export(ctx context.Context, destFSPath string, opts ExportOptions) error {
	if err := os.MkdirAll(destFSPath, 0o755); err != nil {
		return err
	}
	items, err := cd.entries(ctx)
	if err != nil {
		return err
	}
	store := cd.store()

	for _, item := range items {
		dstPath := filepath.Join(destFSPath, item.name)
		switch item.typ {
		case TypeSymlink:
			if err := os.Symlink(item.target, dstPath); err != nil {
				return err
			}
		case TypeDirectory:
			child, err := cd.child(item.name)
			if err != nil {
				return err
			}
			if err := child.Export(ctx, dstPath, opts); err != nil {
				return err
			}
		case TypeRegularFile:
			srcPath, err := store.GetPath(item.digest)
			if err != nil {
				return err
			}
			if err := copyRegularFile(srcPath, dstPath, item.executable, opts.CanLink); err != nil {
				return err
			}
		}
	}
	return nil
}
