package main

import (
	"fmt"

	"github.com/gomodule/redigo/redis"
	"github.com/spf13/cobra"

	"github.com/buildstream-go/core/internal/artifact"
	"github.com/buildstream-go/core/internal/artifact/remote/httpremote"
	"github.com/buildstream-go/core/internal/artifact/remote/rediscache"
	"github.com/buildstream-go/core/internal/artifact/remote/s3remote"
	"github.com/buildstream-go/core/internal/cas"
	"github.com/buildstream-go/core/internal/corectx"
)

// env bundles the process-wide values every subcommand needs: the
// CoreContext built from the loaded Config, the local Object Store and
// the Artifact Cache wired to whatever remotes the config names. Built
// fresh per invocation rather than held as package state (spec §9's
// "replacing process-global singletons" design note, internal/corectx).
type env struct {
	core  *corectx.CoreContext
	store *cas.Store
	cache *artifact.Cache
	redis *rediscache.Index
}

// setupEnv reads --config, loads the Config, opens the Object Store at
// its CacheDir and constructs an Artifact Cache over whatever remotes
// cfg.Remotes declares.
func setupEnv(cmd *cobra.Command) (*env, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := corectx.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	core := corectx.New(cfg)

	store, err := cas.Open(cfg.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("bst: opening object store at %s: %w", cfg.CacheDir, err)
	}

	var remotes []artifact.Remote
	var redisIdx *rediscache.Index
	for _, rc := range cfg.Remotes {
		switch rc.Kind {
		case "s3":
			r, err := s3remote.New(s3remote.Config{
				Name:        rc.Name,
				Bucket:      rc.Bucket,
				Region:      rc.Region,
				PushEnabled: rc.PushEnabled,
				PullEnabled: rc.PullEnabled,
			})
			if err != nil {
				return nil, fmt.Errorf("bst: configuring remote %s: %w", rc.Name, err)
			}
			remotes = append(remotes, r)
		case "http":
			remotes = append(remotes, httpremote.New(httpremote.Config{
				Name:        rc.Name,
				BaseURL:     rc.URL,
				PushEnabled: rc.PushEnabled,
				PullEnabled: rc.PullEnabled,
			}))
		case "redis":
			pool := &redis.Pool{Dial: func() (redis.Conn, error) { return redis.Dial("tcp", rc.URL) }}
			redisIdx = rediscache.New(pool, "buildstream:artifact-lru")
		case "":
			// no remote configured; local-only cache.
		default:
			return nil, fmt.Errorf("bst: unknown remote kind %q for %s", rc.Kind, rc.Name)
		}
	}

	cache := artifact.New(store, cfg.QuotaBytes, remotes...)
	return &env{core: core, store: store, cache: cache, redis: redisIdx}, nil
}
