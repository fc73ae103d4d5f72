package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SendMessage is the native ledger's token-send message.
type SendMessage struct {
	FromAddress string `json:"fromAddress"`
	ToAddress   string `json:"toAddress"`
	Amount      uint64 `json:"amount"`
}

// TxParams carries everything the external signing surface needs to build a
// native-ledger transaction.
type TxParams struct {
	Msg    SendMessage
	Fee    uint64
	Memo   string
	Height uint64
}

// Signer is the external wallet key-management surface for the native ledger.
// Key storage and curve selection live behind it; this core only hands it
// messages to sign.
type Signer interface {
	CreateSendMessage(from, to string, amount uint64) SendMessage
	CreateAndSignTransaction(ctx context.Context, params TxParams) ([]byte, error)
}

// RemoteSigner asks an out-of-process signing service (the wallet surface) to
// build and sign native-ledger transactions. Keys never enter this process.
type RemoteSigner struct {
	baseURL string
	http    *http.Client
}

func NewRemoteSigner(baseURL string) *RemoteSigner {
	return &RemoteSigner{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *RemoteSigner) CreateSendMessage(from, to string, amount uint64) SendMessage {
	return SendMessage{FromAddress: from, ToAddress: to, Amount: amount}
}

func (s *RemoteSigner) CreateAndSignTransaction(ctx context.Context, params TxParams) ([]byte, error) {
	body, err := json.Marshal(struct {
		Msg    SendMessage `json:"msg"`
		Fee    uint64      `json:"fee"`
		Memo   string      `json:"memo"`
		Height uint64      `json:"height"`
	}{params.Msg, params.Fee, params.Memo, params.Height})
	if err != nil {
		return nil, fmt.Errorf("marshal signing request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/sign", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create signing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("signing service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signing service returned status %d", resp.StatusCode)
	}

	var out struct {
		SignedTx string `json:"signedTx"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode signing response: %w", err)
	}

	signed, err := hex.DecodeString(out.SignedTx)
	if err != nil {
		return nil, fmt.Errorf("decode signed payload: %w", err)
	}

	return signed, nil
}
