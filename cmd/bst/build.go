package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildstream-go/core/internal/graph"
	"github.com/buildstream-go/core/internal/queue"
	"github.com/buildstream-go/core/internal/scheduler"
)

var buildCmd = &cobra.Command{
	Use:   "build <element>...",
	Short: "Track, fetch, pull, build and push one or more elements",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBuild,
}

func init() {
	registerElementFlags(buildCmd)
	buildCmd.Flags().Bool("keep-going", false, "keep building unrelated elements after one fails (spec §4.8 keepGoing)")
	buildCmd.Flags().Int("retries", 3, "retry attempts for network-bound stages (Track, Fetch, Pull, Push)")
}

func runBuild(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	kind, project, sourceKind, sourceRef, sourcePath := elementFlagValues(cmd)
	keepGoing, _ := cmd.Flags().GetBool("keep-going")
	retries, _ := cmd.Flags().GetInt("retries")

	elems, err := buildElements(args, kind, sourceKind, sourceRef)
	if err != nil {
		return err
	}

	statFn := statSourceFetcher(sourcePath)
	fetchSources := func(ctx context.Context, elem *graph.Element) error {
		return statFn(elem.Name)
	}

	pipeline := queue.NewPipeline(project, e.cache, fetchSources, retries)
	ctx := cmd.Context()
	for _, elem := range elems {
		pipeline.Track.Enqueue(ctx, elem)
	}

	limits := scheduler.Limits{
		Process:  int64(e.core.Config.Resources.Process),
		Download: int64(e.core.Config.Resources.Download),
		Upload:   int64(e.core.Config.Resources.Upload),
	}
	sched := scheduler.New(pipeline, limits, keepGoing)
	outcome, err := sched.Run(ctx)
	if err != nil {
		return fmt.Errorf("bst build: %w", err)
	}

	for _, elem := range elems {
		fmt.Printf("%s: %s\n", elem.Name, elem.State)
	}
	if outcome != scheduler.Success {
		return fmt.Errorf("bst build: %s", outcome)
	}
	return nil
}
