package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <element>...",
	Short: "Make one or more elements' sources locally available, without building",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFetch,
}

func init() {
	registerElementFlags(fetchCmd)
}

// runFetch drives only the Track→Fetch half of the pipeline: it never
// touches the Artifact Cache, so it runs synchronously rather than
// standing up a Scheduler over a 5-stage pipeline for two stages that
// have nothing to wait on.
func runFetch(cmd *cobra.Command, args []string) error {
	kind, _, sourceKind, sourceRef, sourcePath := elementFlagValues(cmd)

	elems, err := buildElements(args, kind, sourceKind, sourceRef)
	if err != nil {
		return err
	}

	statFn := statSourceFetcher(sourcePath)
	failed := false
	for _, elem := range elems {
		if err := statFn(elem.Name); err != nil {
			fmt.Printf("%s: FAILED: %v\n", elem.Name, err)
			elem.MarkFailed()
			failed = true
			continue
		}
		elem.MarkFetched()
		fmt.Printf("%s: %s\n", elem.Name, elem.State)
	}
	if failed {
		return fmt.Errorf("bst fetch: one or more elements failed to fetch")
	}
	return nil
}
