package main

import (
	"fmt"

	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"

	"github.com/buildstream-go/core/internal/artifact"
)

var showCmd = &cobra.Command{
	Use:   "show <element>...",
	Short: "Print an element's computed cache keys and whether it is already cached",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runShow,
}

func init() {
	registerElementFlags(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	e, err := setupEnv(cmd)
	if err != nil {
		return err
	}
	kind, project, sourceKind, sourceRef, _ := elementFlagValues(cmd)

	elems, err := buildElements(args, kind, sourceKind, sourceRef)
	if err != nil {
		return err
	}

	for _, elem := range elems {
		ref := artifact.NewRef(project, elem.Name, elem.StrongKey)
		cached := e.cache.Contains(ref)
		fmt.Printf("%s\n  state:  %s\n  weak:   %s\n  strong: %s\n  cached: %t\n", elem.Name, elem.State, elem.WeakKey, elem.StrongKey, cached)
		if cached {
			if desc, err := loadArtifactDescriptor(e, ref); err == nil {
				fmt.Printf("  descriptor: %s %s (%d bytes)\n", desc.MediaType, desc.Digest, desc.Size)
			}
		}
	}
	return nil
}

// loadArtifactDescriptor resolves ref to its stored Artifact record and
// returns it as an OCI Content Descriptor (artifact.Artifact.Descriptor),
// the shape the remote asset protocol exposes over HTTP (spec §6).
func loadArtifactDescriptor(e *env, ref artifact.Ref) (v1.Descriptor, error) {
	dg, err := e.store.ReadRef(string(ref))
	if err != nil {
		return v1.Descriptor{}, err
	}
	a, err := artifact.Load(e.store, dg)
	if err != nil {
		return v1.Descriptor{}, err
	}
	return a.Descriptor(), nil
}
