package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/reya-positions/internal/connection"
)

// PricesChannel carries price updates for every market.
const PricesChannel = "/v2/prices"

// ErrFetchPositions is the feature-level error recorded when a wallet's
// positions cannot be loaded.
var ErrFetchPositions = errors.New("failed to fetch wallet positions")

// WalletPositionsChannel returns the positions channel of address.
func WalletPositionsChannel(address string) string {
	return "/v2/wallet/" + address + "/positions"
}

// Subscriber is the part of the Connection Manager a feed uses.
type Subscriber interface {
	Connect(ctx context.Context) error
	Subscribe(channel string, handler connection.Handler) (unsubscribe func())
}

// Stats counts frames seen by a feed.
type Stats struct {
	Frames       int64
	Records      int64
	DecodeErrors int64
	Dropped      int64 // Frames that arrived after Stop
}

// DecodeList accepts either a single object or an array of objects.
func DecodeList[T any](data json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var list []T
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return list, nil
	case '{':
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return []T{one}, nil
	}
	return nil, fmt.Errorf("decode: unexpected payload starting with %q", trimmed[0])
}
