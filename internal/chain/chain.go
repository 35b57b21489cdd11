// Package chain connects the contract layer to a JSON-RPC node and a local
// key.
package chain

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// Dial connects to an Ethereum JSON-RPC endpoint (http, https, ws or ipc).
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("dial: no RPC URL configured")
	}
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: 30 * time.Second}))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return ethclient.NewClient(c), nil
}
