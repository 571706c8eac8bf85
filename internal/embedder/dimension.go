package embedder

import (
	"github.com/ragscale/ingestor/internal/config"
	"github.com/ragscale/ingestor/internal/model"
)

// dimensionPolicy describes one model's native dimension and, for
// models that support it, the set of dimensions a caller may request
// instead via an embedding_dimensions override.
type dimensionPolicy struct {
	Default           int
	SupportsOverride  bool
	AllowedDimensions []int
}

// policyTable takes the allowed dimension sets of the override-capable
// models from config. config.Load fills those sets with fixed built-in
// lists; they are not read from the environment, so widening them in a
// deployment takes a code change.
func policyTable(cfg *config.Config) map[string]dimensionPolicy {
	return map[string]dimensionPolicy{
		"jina_v2_base": {
			Default:          768,
			SupportsOverride: false,
		},
		"text-embedding-ada-002": {
			Default:          1536,
			SupportsOverride: false,
		},
		"text-embedding-3-small": {
			Default:           1536,
			SupportsOverride:  true,
			AllowedDimensions: cfg.TextEmbedding3SmallDimensions,
		},
		"text-embedding-3-large": {
			Default:           3072,
			SupportsOverride:  true,
			AllowedDimensions: cfg.TextEmbedding3LargeDimensions,
		},
		"thinktank_default": {
			Default:          1024,
			SupportsOverride: false,
		},
	}
}

// resolveDimension validates an optional embedding_dimensions override
// against modelName's policy and returns the dimension to request.
func resolveDimension(cfg *config.Config, modelName string, override *int) (int, error) {
	policy, ok := policyTable(cfg)[modelName]
	if !ok {
		return 0, &model.InvalidModelError{ModelName: modelName}
	}
	if override == nil {
		return policy.Default, nil
	}
	if !policy.SupportsOverride {
		if *override != policy.Default {
			return 0, &model.InvalidModelDimensions{
				Model:              modelName,
				Dimensions:         *override,
				ExpectedDimensions: policy.Default,
			}
		}
		return *override, nil
	}
	for _, allowed := range policy.AllowedDimensions {
		if allowed == *override {
			return *override, nil
		}
	}
	return 0, &model.UnsupportedDimensionError{
		Model:             modelName,
		Dimensions:        *override,
		AllowedDimensions: policy.AllowedDimensions,
	}
}
