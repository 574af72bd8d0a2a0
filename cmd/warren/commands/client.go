package commands

import (
	"fmt"

	"github.com/dyluth/warren/internal/conductor"
	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/producer"
	"github.com/dyluth/warren/pkg/pipeline"
	"github.com/redis/go-redis/v9"
)

// loadClient loads warren.yml and opens a pipeline store client for the
// configured instance. The caller owns Close().
func loadClient() (*config.WarrenConfig, *pipeline.Client, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}

	client, err := pipeline.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Instance)
	if err != nil {
		return nil, nil, err
	}

	return cfg, client, nil
}

// producerForKind builds the approval-relay producer for an artifact kind
// from the configured registry. The CLI never generates content, so the
// producer carries no generate function; only Approve and Reject are usable.
func producerForKind(cfg *config.WarrenConfig, client *pipeline.Client, kind pipeline.ArtifactKind) (*producer.Producer, error) {
	for name, p := range cfg.Producers {
		if pipeline.ArtifactKind(p.Kind) != kind {
			continue
		}

		return producer.New(client, conductor.New(client), producer.Spec{
			Name:             name,
			Stage:            pipeline.Stage(p.Stage),
			Kind:             kind,
			Requires:         requiredKinds(p.Requires),
			Next:             pipeline.Stage(p.Next),
			TerminalForStage: p.Terminal,
			MaxAttempts:      p.MaxAttempts,
			InitialBackoff:   p.InitialBackoff(),
		})
	}

	return nil, fmt.Errorf("no producer configured for kind %q", kind)
}

func requiredKinds(names []string) []pipeline.ArtifactKind {
	kinds := make([]pipeline.ArtifactKind, len(names))
	for i, n := range names {
		kinds[i] = pipeline.ArtifactKind(n)
	}
	return kinds
}
