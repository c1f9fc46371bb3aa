package contract

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// DefaultEvent is the event watched when none is configured.
const DefaultEvent = "TransferWithReward"

// gemMintEventsABIJSON covers the events emitted by the GemMint reward token.
const gemMintEventsABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "reward", "type": "uint256"}
    ],
    "name": "TransferWithReward",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "from", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "to", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": false, "internalType": "uint256", "name": "id", "type": "uint256"}
    ],
    "name": "SnapshotCreated",
    "type": "event"
  }
]`

var (
	gemMintABI     abi.ABI
	gemMintABIOnce sync.Once
	gemMintABIErr  error
)

// GemMintABI returns the parsed built-in token ABI.
func GemMintABI() (abi.ABI, error) {
	gemMintABIOnce.Do(func() {
		gemMintABI, gemMintABIErr = abi.JSON(strings.NewReader(gemMintEventsABIJSON))
	})
	return gemMintABI, gemMintABIErr
}

// LoadABI reads a JSON ABI from path. An empty path yields the built-in ABI.
func LoadABI(path string) (abi.ABI, error) {
	if strings.TrimSpace(path) == "" {
		return GemMintABI()
	}

	f, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("open abi: %w", err)
	}
	defer f.Close()

	parsed, err := abi.JSON(f)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	if len(parsed.Events) == 0 {
		return abi.ABI{}, fmt.Errorf("abi %s declares no events", path)
	}
	return parsed, nil
}

// EventNames lists the events declared in the ABI, sorted.
func EventNames(contractABI abi.ABI) []string {
	names := make([]string, 0, len(contractABI.Events))
	for name := range contractABI.Events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
