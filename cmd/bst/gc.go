package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove unreachable blobs and evict artifacts until the cache is back under quota",
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().Bool("sweep-only", false, "only remove unreachable blobs; skip quota-driven eviction")
}

func runGC(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}

	removed, err := e.cache.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("bst gc: sweep: %w", err)
	}
	fmt.Printf("swept %d unreachable blobs\n", removed)

	sweepOnly, _ := cmd.Flags().GetBool("sweep-only")
	if sweepOnly {
		return nil
	}

	evicted, err := e.cache.EvictUnderQuota(cmd.Context())
	if err != nil {
		return fmt.Errorf("bst gc: evict: %w", err)
	}
	for _, ref := range evicted {
		fmt.Printf("evicted %s\n", ref.URN())
		if e.redis != nil {
			if err := e.redis.Remove(cmd.Context(), ref.URN()); err != nil {
				return fmt.Errorf("bst gc: removing %s from shared LRU index: %w", ref.URN(), err)
			}
		}
	}
	fmt.Printf("evicted %d artifacts to satisfy quota\n", len(evicted))
	return nil
}
