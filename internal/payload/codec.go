package payload

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ABI JSON for the standard token transfer, the only fragment we need.
const transferABI = `[
	{
		"inputs": [
			{
				"internalType": "address",
				"name": "to",
				"type": "address"
			},
			{
				"internalType": "uint256",
				"name": "amount",
				"type": "uint256"
			}
		],
		"name": "transfer",
		"outputs": [
			{
				"internalType": "bool",
				"name": "",
				"type": "bool"
			}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// transferCallLen is selector (4) plus two 32-byte ABI words.
const transferCallLen = 4 + 32 + 32

var parsedTransferABI = mustParseABI(transferABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse transfer ABI: %v", err))
	}
	return parsed
}

// Encode builds the calldata for transfer(to, amount) and appends the intent
// as trailing data: the intent is marshaled to compact JSON, hex-encoded, and
// the hex characters are appended verbatim after the standard call bytes.
// Any decoder that only understands the transfer ABI still reads the leading
// bytes as a valid transfer; the settlement committee recovers the intent
// from the trailing region.
//
// Encoding is deterministic: the same inputs always produce the same bytes.
func Encode(to ethcommon.Address, amount *uint256.Int, intent any) ([]byte, error) {
	if amount == nil {
		amount = uint256.NewInt(0)
	}

	call, err := parsedTransferABI.Pack("transfer", to, amount.ToBig())
	if err != nil {
		return nil, fmt.Errorf("pack transfer call: %w", err)
	}

	intentJSON, err := json.Marshal(intent)
	if err != nil {
		return nil, fmt.Errorf("marshal intent: %w", err)
	}

	return append(call, []byte(hex.EncodeToString(intentJSON))...), nil
}

// DecodeTransfer reads only the leading standard-call bytes and returns the
// (to, amount) pair they encode, ignoring any trailing data.
func DecodeTransfer(data []byte) (ethcommon.Address, *uint256.Int, error) {
	if len(data) < transferCallLen {
		return ethcommon.Address{}, nil, errors.New("calldata shorter than a transfer call")
	}

	method := parsedTransferABI.Methods["transfer"]
	if !bytes.Equal(data[:4], method.ID) {
		return ethcommon.Address{}, nil, errors.New("calldata is not a transfer call")
	}

	args, err := method.Inputs.Unpack(data[4:transferCallLen])
	if err != nil {
		return ethcommon.Address{}, nil, fmt.Errorf("unpack transfer args: %w", err)
	}

	to, ok := args[0].(ethcommon.Address)
	if !ok {
		return ethcommon.Address{}, nil, errors.New("failed to unpack destination address")
	}

	amountBig, ok := args[1].(*big.Int)
	if !ok {
		return ethcommon.Address{}, nil, errors.New("failed to unpack amount")
	}

	amount, overflow := uint256.FromBig(amountBig)
	if overflow {
		return ethcommon.Address{}, nil, errors.New("amount overflows uint256")
	}

	return to, amount, nil
}

// DecodeIntent recovers the trailing intent region into v. It is the inverse
// of the append step in Encode.
func DecodeIntent(data []byte, v any) error {
	if len(data) <= transferCallLen {
		return errors.New("calldata carries no intent")
	}

	raw, err := hex.DecodeString(string(data[transferCallLen:]))
	if err != nil {
		return fmt.Errorf("decode intent hex: %w", err)
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal intent: %w", err)
	}

	return nil
}
