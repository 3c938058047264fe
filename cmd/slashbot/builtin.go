package main

import (
	"context"
	"fmt"

	"github.com/slashbot/slashbot/internal/plugins"
	"github.com/slashbot/slashbot/internal/providers"
	"github.com/slashbot/slashbot/internal/providers/anthropic"
	"github.com/slashbot/slashbot/internal/providers/bedrock"
	"github.com/slashbot/slashbot/internal/providers/openai"
	"github.com/slashbot/slashbot/internal/providers/venice"
)

// registerBuiltinProviders adds the four builtin model providers as
// synthetic plugins so they flow through the normal Loader.Add/LoadAll
// path (SPEC_FULL.md §B's provider-factory row), and returns their
// definitions so the caller can seed the auth router's per-provider
// preferred auth order (spec.md §4.6).
func registerBuiltinProviders(ctx context.Context, loader *plugins.Loader) ([]providers.Definition, error) {
	defs := []providers.Definition{
		anthropic.Definition(),
		openai.Definition(),
		bedrock.Definition(ctx, nil),
		venice.Definition(),
	}

	for _, def := range defs {
		def := def
		register := func(api *plugins.API) error {
			result := api.RegisterProvider(def.ID, def)
			if !result.OK {
				return fmt.Errorf("register provider %s: %s", def.ID, result.Reason)
			}
			return nil
		}
		if err := loader.Add(asProviderPlugin(def.ID, register)); err != nil {
			return nil, fmt.Errorf("add builtin provider %s: %w", def.ID, err)
		}
	}

	return defs, nil
}
