// Package genesis seeds an empty ledger from the node configuration.
package genesis

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"flashreserve/config"
	"flashreserve/core/state"
	"flashreserve/crypto"
	"flashreserve/native/bank"
	"flashreserve/native/reserve"
)

// Result describes what Apply found or wrote.
type Result struct {
	Config *reserve.Config
	// Created is false when the ledger was already initialised.
	Created bool
}

// Apply stamps the schema version and, when the reserve does not exist yet,
// registers the genesis assets, credits the allocations and initialises the
// reserve. Either all of it lands or none of it does.
func Apply(ctx context.Context, root *state.Manager, engine *reserve.Engine, g config.Genesis, params reserve.Params) (*Result, error) {
	if root == nil || engine == nil {
		return nil, errors.New("genesis: state and engine required")
	}
	if err := root.EnsureStateVersion(); err != nil {
		return nil, err
	}
	engine.SetState(root)
	cfg, err := engine.Config()
	switch {
	case err == nil:
		return &Result{Config: cfg}, nil
	case !errors.Is(err, reserve.ErrNotInitialized):
		return nil, err
	}

	tx := root.Begin()
	defer tx.Discard()

	assets := append([]config.Asset(nil), g.Assets...)
	sort.Slice(assets, func(i, j int) bool { return assets[i].Symbol < assets[j].Symbol })
	for _, asset := range assets {
		name := asset.Name
		if name == "" {
			name = asset.Symbol
		}
		if err := bank.RegisterToken(tx, asset.Symbol, name, asset.Decimals, nil); err != nil {
			return nil, fmt.Errorf("genesis: asset %s: %w", asset.Symbol, err)
		}
	}
	for i, alloc := range g.Allocations {
		addr, err := crypto.DecodeAddress(alloc.Address)
		if err != nil {
			return nil, fmt.Errorf("genesis: allocations[%d]: %w", i, err)
		}
		if err := bank.Credit(tx, alloc.Symbol, addr.Bytes(), new(big.Int).SetUint64(alloc.Amount)); err != nil {
			return nil, fmt.Errorf("genesis: allocations[%d]: %w", i, err)
		}
	}

	engine.SetState(tx)
	cfg, err = engine.Genesis(ctx, params)
	engine.SetState(root)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("genesis: commit: %w", err)
	}
	return &Result{Config: cfg, Created: true}, nil
}
