package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildstream-go/core/internal/artifact"
)

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Inspect and transfer cached artifacts directly, bypassing the build pipeline",
}

var artifactPushCmd = &cobra.Command{
	Use:   "push <project> <element> <strong-key>",
	Short: "Push a locally cached artifact to every configured push-enabled remote",
	Args:  cobra.ExactArgs(3),
	RunE:  runArtifactPush,
}

var artifactPullCmd = &cobra.Command{
	Use:   "pull <project> <element> <strong-key>",
	Short: "Pull an artifact from the first pull-enabled remote that has it",
	Args:  cobra.ExactArgs(3),
	RunE:  runArtifactPull,
}

var artifactListCmd = &cobra.Command{
	Use:   "list [glob]",
	Short: "List locally cached artifact refs, optionally filtered by glob",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runArtifactList,
}

func init() {
	artifactPullCmd.Flags().Bool("buildtrees", false, "also pull the artifact's build tree, if present")
	artifactCmd.AddCommand(artifactPushCmd, artifactPullCmd, artifactListCmd)
}

func runArtifactPush(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	ref := artifact.NewRef(args[0], args[1], args[2])
	pushed, err := e.cache.Push(cmd.Context(), ref)
	if err != nil {
		return fmt.Errorf("bst artifact push: %w", err)
	}
	fmt.Printf("%s: pushed=%t\n", ref.URN(), pushed)
	return nil
}

func runArtifactPull(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	buildtrees, _ := cmd.Flags().GetBool("buildtrees")
	ref := artifact.NewRef(args[0], args[1], args[2])
	pulled, err := e.cache.Pull(cmd.Context(), ref, buildtrees)
	if err != nil {
		return fmt.Errorf("bst artifact pull: %w", err)
	}
	if pulled && e.redis != nil {
		if err := e.redis.Touch(cmd.Context(), ref.URN()); err != nil {
			return fmt.Errorf("bst artifact pull: touching shared LRU index: %w", err)
		}
	}
	fmt.Printf("%s: pulled=%t\n", ref.URN(), pulled)
	return nil
}

func runArtifactList(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	glob := ""
	if len(args) == 1 {
		glob = args[0]
	}
	refs, err := e.cache.ListArtifacts(cmd.Context(), glob)
	if err != nil {
		return fmt.Errorf("bst artifact list: %w", err)
	}
	for _, ref := range refs {
		fmt.Println(ref.URN())
	}
	return nil
}
