package common

import "time"

// ChainID represents supported EVM network chain IDs as an enum type
type ChainID int64

const (
	EthereumMainnet ChainID = 1
	ArbitrumOne     ChainID = 42161
	Polygon         ChainID = 137
	BSC             ChainID = 56
	Optimism        ChainID = 10
	Base            ChainID = 8453
)

// Protocol constants for the lock/close coordination flow.
const (
	// FeeMultiplier scales the base send fee for lock/close indexing
	// transactions. The settlement side rejects anything below
	// sendFee * FeeMultiplier.
	FeeMultiplier = 2

	// DeadlineBlockOffset is added to the current native-ledger height to
	// produce a lock order deadline.
	DeadlineBlockOffset = 15

	// DefaultLockDeadline is the degraded-mode deadline used only when the
	// height oracle is unreachable.
	DefaultLockDeadline = 100_000

	// IndexingSendAmount is the amount of the self-transfer that carries a
	// lock payload in its memo, in the smallest native unit.
	IndexingSendAmount = 1

	// ClosedSweepDelay is how long a closed entry stays visible in the
	// tracker before it is removed.
	ClosedSweepDelay = 2 * time.Second
)
