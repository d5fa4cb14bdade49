package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rickgao/reya-positions/internal/model"
)

// GetMarketDefinitions fetches every market definition.
func (c *Client) GetMarketDefinitions(ctx context.Context) ([]model.MarketDefinition, error) {
	var resp []APIMarketDefinition
	if err := c.get(ctx, "/marketDefinitions", nil, &resp); err != nil {
		return nil, fmt.Errorf("get market definitions: %w", err)
	}

	out := make([]model.MarketDefinition, len(resp))
	for i := range resp {
		out[i] = resp[i].ToModel()
	}
	return out, nil
}

// GetWalletPositions fetches the open positions of a wallet.
func (c *Client) GetWalletPositions(ctx context.Context, address string) ([]model.Position, error) {
	var resp []APIPosition
	if err := c.get(ctx, "/wallet/"+url.PathEscape(address)+"/positions", nil, &resp); err != nil {
		return nil, fmt.Errorf("get wallet positions %s: %w", address, err)
	}
	return PositionsToModel(resp), nil
}
