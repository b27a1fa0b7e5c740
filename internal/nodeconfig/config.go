// Package nodeconfig loads the TOML process configuration for a single
// narwhal-abci-evm node.
package nodeconfig

import (
	"os"

	"github.com/naoina/toml"
	"github.com/pkg/errors"
)

// Config is the full set of addresses and paths one node process needs.
// Committee membership, key material, and the DAG/consensus feed itself are
// not part of this config — they remain an external collaborator's
// responsibility, per the non-goals.
type Config struct {
	// AbciAddr is the socket the ABCI application listens on, e.g.
	// "tcp://127.0.0.1:26658".
	AbciAddr string `toml:"abci_addr"`
	// GatewayAddr is the address the HTTP gateway binds (before the bind
	// policy forces the host portion to 0.0.0.0).
	GatewayAddr string `toml:"gateway_addr"`
	// MempoolAddr is the TCP address /broadcast_tx forwards framed
	// transactions to.
	MempoolAddr string `toml:"mempool_addr"`
	// StorePath is the prefix worker databases are opened under:
	// "{store_path}-{worker_id}".
	StorePath string `toml:"store_path"`
	// ChainID seeds the EVM environment's chain id.
	ChainID uint64 `toml:"chain_id"`
	// Demo pre-funds the well-known demo account at genesis.
	Demo bool `toml:"demo"`
}

// Load reads and decodes a TOML config file at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}
