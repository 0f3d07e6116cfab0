package vdir

import (
	"context"
	"fmt"

	"github.com/buildstream-go/core/internal/cas"
)

// Import implements VirtualDirectory for CASDirectory: merges src's tree
// into cd following the overlay rule of spec §4.3.
//
// Overlay rule: symlink entries are applied before any file that might
// traverse them. An incoming directory that collides with an existing
// empty directory overwrites it (by descending and merging); a collision
// with a non-empty directory is ignored and reported. An incoming file or
// symlink always overwrites whatever currently occupies that name.
func (cd *CASDirectory) Import(ctx context.Context, src VirtualDirectory, opts ImportOptions) (FileListResult, error) {
	var result FileListResult
	if err := importInto(ctx, cd, src, "", opts, &result); err != nil {
		return result, err
	}
	return result, nil
}

func importInto(ctx context.Context, dst *CASDirectory, src VirtualDirectory, prefix string, opts ImportOptions, result *FileListResult) error {
	items, err := src.entries(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		relpath := prefix + item.name
		if opts.Filter != nil && !opts.Filter(relpath) {
			continue
		}

		n := dst.node()
		_, existed := n.index[item.name]

		switch item.typ {
		case TypeSymlink:
			dst.setSymlink(item.name, item.target)
			if existed {
				result.Overwritten = append(result.Overwritten, relpath)
			} else {
				result.FilesWritten = append(result.FilesWritten, relpath)
			}

		case TypeDirectory:
			childDst, ok, err := dst.ensureEmptyChildDir(item.name)
			if err != nil {
				return err
			}
			if !ok {
				result.Ignored = append(result.Ignored, relpath)
				continue
			}
			childSrc, err := src.Descend(ctx, []string{item.name}, false)
			if err != nil {
				return err
			}
			if err := importInto(ctx, childDst, childSrc, relpath+"/", opts, result); err != nil {
				return err
			}

		case TypeRegularFile:
			digest, err := copyBlob(dst.store(), src.store(), item)
			if err != nil {
				return fmt.Errorf("vdir: importing %s: %w", relpath, err)
			}
			dst.setFile(item.name, digest, item.executable)
			if existed {
				result.Overwritten = append(result.Overwritten, relpath)
			} else {
				result.FilesWritten = append(result.FilesWritten, relpath)
			}

		default:
			result.FailedAttributes = append(result.FailedAttributes, relpath)
		}
	}
	return nil
}

// copyBlob returns the digest of item's content as seen by dstStore,
// copying the bytes over from srcStore first if the two stores differ and
// dstStore doesn't already have the blob. FSDirectory entries carry
// srcPath instead of a pre-known digest and are hashed straight into
// dstStore via PutPath, avoiding reading the file twice.
func copyBlob(dstStore, srcStore *cas.Store, item entryInfo) (cas.Digest, error) {
	if item.srcPath != "" {
		return dstStore.PutPath(item.srcPath)
	}
	if dstStore == srcStore || dstStore.Has(item.digest) {
		return item.digest, nil
	}
	content, err := srcStore.Get(item.digest)
	if err != nil {
		return cas.Digest{}, err
	}
	return dstStore.PutBytes(content)
}
