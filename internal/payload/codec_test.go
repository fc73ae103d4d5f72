package payload

import (
	"bytes"
	"testing"

	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

func TestEncodeRoundTripsTransferCall(t *testing.T) {
	tests := []struct {
		name   string
		to     ethcommon.Address
		amount *uint256.Int
	}{
		{
			name:   "zero-value signaling call",
			to:     ethcommon.HexToAddress("0xBEEF00000000000000000000000000000000BEEF"),
			amount: uint256.NewInt(0),
		},
		{
			name:   "payment call",
			to:     ethcommon.HexToAddress("0x7788000000000000000000000000000000007788"),
			amount: uint256.NewInt(5_000_000),
		},
		{
			name:   "large amount",
			to:     ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
			amount: uint256.MustFromDecimal("123456789012345678901234567890"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := common.LockOrderData{OrderID: "ord-1", ChainID: 7}
			data, err := Encode(tt.to, tt.amount, intent)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			to, amount, err := DecodeTransfer(data)
			if err != nil {
				t.Fatalf("DecodeTransfer() error = %v", err)
			}
			if to != tt.to {
				t.Errorf("DecodeTransfer() to = %s, want %s", to.Hex(), tt.to.Hex())
			}
			if !amount.Eq(tt.amount) {
				t.Errorf("DecodeTransfer() amount = %s, want %s", amount.Dec(), tt.amount.Dec())
			}
		})
	}
}

func TestEncodeRoundTripsIntent(t *testing.T) {
	to := ethcommon.HexToAddress("0xBEEF00000000000000000000000000000000BEEF")

	lockIntent := common.LockOrderData{
		OrderID:             "ord-1",
		ChainID:             7,
		BuyerSendAddress:    "BEEF00000000000000000000000000000000BEEF",
		BuyerReceiveAddress: "ABCD000000000000000000000000000000000000",
		BuyerChainDeadline:  1015,
	}

	data, err := Encode(to, uint256.NewInt(0), lockIntent)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var decoded common.LockOrderData
	if err := DecodeIntent(data, &decoded); err != nil {
		t.Fatalf("DecodeIntent() error = %v", err)
	}
	if decoded != lockIntent {
		t.Errorf("DecodeIntent() = %+v, want %+v", decoded, lockIntent)
	}
}

func TestEncodeCloseOrderIntent(t *testing.T) {
	to := ethcommon.HexToAddress("0x7788000000000000000000000000000000007788")

	closeIntent := common.CloseOrderData{OrderID: "ord-9", ChainID: 7, CloseOrder: true}
	data, err := Encode(to, uint256.NewInt(5_000_000), closeIntent)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var decoded common.CloseOrderData
	if err := DecodeIntent(data, &decoded); err != nil {
		t.Fatalf("DecodeIntent() error = %v", err)
	}
	if decoded != closeIntent {
		t.Errorf("DecodeIntent() = %+v, want %+v", decoded, closeIntent)
	}
	if !decoded.CloseOrder {
		t.Error("closeOrder flag not preserved")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	to := ethcommon.HexToAddress("0xBEEF00000000000000000000000000000000BEEF")
	intent := common.LockOrderData{OrderID: "ord-1", ChainID: 7, BuyerChainDeadline: 42}

	first, err := Encode(to, uint256.NewInt(0), intent)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	second, err := Encode(to, uint256.NewInt(0), intent)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("encoding the same inputs twice produced different bytes")
	}
}

func TestDecodeTransferRejectsShortOrForeignCalldata(t *testing.T) {
	if _, _, err := DecodeTransfer([]byte{0x01, 0x02}); err == nil {
		t.Error("expected error for short calldata")
	}

	foreign := make([]byte, transferCallLen)
	foreign[0] = 0xde
	if _, _, err := DecodeTransfer(foreign); err == nil {
		t.Error("expected error for non-transfer selector")
	}
}

func TestDecodeIntentRejectsBareTransfer(t *testing.T) {
	to := ethcommon.HexToAddress("0xBEEF00000000000000000000000000000000BEEF")
	data, err := Encode(to, uint256.NewInt(1), common.CloseOrderData{OrderID: "x", ChainID: 1, CloseOrder: true})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	var out common.CloseOrderData
	if err := DecodeIntent(data[:transferCallLen], &out); err == nil {
		t.Error("expected error when the trailing intent region is absent")
	}
}
