package api

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/canopy-network/canopy-frontend-sub008/internal/chain"
	"github.com/canopy-network/canopy-frontend-sub008/internal/common"
	"github.com/canopy-network/canopy-frontend-sub008/internal/coordinator"
	"github.com/canopy-network/canopy-frontend-sub008/internal/tracker"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

type stubWallet struct{}

func (stubWallet) ConnectedAddress() (ethcommon.Address, bool) {
	return ethcommon.HexToAddress("0xBEEF00000000000000000000000000000000BEEF"), true
}

func (stubWallet) ActiveNetworkID() common.ChainID { return common.EthereumMainnet }

func (stubWallet) SendTransaction(_ context.Context, _ ethcommon.Address, _ []byte) (chain.PendingTx, error) {
	return chain.PendingTx{Hash: ethcommon.BytesToHash([]byte("api-test"))}, nil
}

func (stubWallet) WaitForReceipt(_ context.Context, tx chain.PendingTx) (chain.Receipt, error) {
	return chain.Receipt{Success: true, Hash: tx.Hash}, nil
}

type stubLedger struct{}

func (stubLedger) Height(_ context.Context, _ uint64) (uint64, error) { return 1000, nil }
func (stubLedger) FeeParams(_ context.Context) (chain.FeeParams, error) {
	return chain.FeeParams{SendFee: 10000}, nil
}
func (stubLedger) SubmitTransaction(_ context.Context, _ []byte) (string, error) {
	return "native-tx", nil
}

type stubSigner struct{}

func (stubSigner) CreateSendMessage(from, to string, amount uint64) chain.SendMessage {
	return chain.SendMessage{FromAddress: from, ToAddress: to, Amount: amount}
}

func (stubSigner) CreateAndSignTransaction(_ context.Context, _ chain.TxParams) ([]byte, error) {
	return []byte("signed"), nil
}

func newTestAPI(t *testing.T) (*httptest.Server, *tracker.Tracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := log.New(io.Discard, "", 0)
	tr := tracker.New(logger)
	tr.SetSweepDelay(time.Hour)

	coord := coordinator.New(coordinator.Config{
		RequiredNetwork: common.EthereumMainnet,
	}, stubWallet{}, stubLedger{}, stubSigner{}, tr, logger)

	s := &APIServer{port: 0, coordinator: coord, logger: logger}
	srv := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(srv.Close)
	return srv, tr
}

func TestLockEndpointRejectsMissingNativeAddress(t *testing.T) {
	srv, _ := newTestAPI(t)

	body := `{"order":{"id":"ord-1","committee":7,"requestedAmount":"5000000","amountForSale":"1"},"nativeAddress":""}`
	resp, err := http.Post(srv.URL+"/orders/v1.0/lock", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST lock: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want %d for a precondition failure", resp.StatusCode, http.StatusUnprocessableEntity)
	}
}

func TestLockEndpointTracksOrder(t *testing.T) {
	srv, tr := newTestAPI(t)

	body := `{"order":{"id":"ord-1","committee":7,"sellerReceiveAddress":"7788","requestedAmount":"5000000","amountForSale":"1"},"nativeAddress":"ABCD"}`
	resp, err := http.Post(srv.URL+"/orders/v1.0/lock", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST lock: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
	}

	if _, ok := tr.Get("ord-1"); !ok {
		t.Fatal("lock request did not create a tracker entry")
	}

	listResp, err := http.Get(srv.URL + "/orders/v1.0/tracked?status=locking")
	if err != nil {
		t.Fatalf("GET tracked: %v", err)
	}
	defer listResp.Body.Close()

	var entries []common.LockedOrderEntry
	if err := json.NewDecoder(listResp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode tracked list: %v", err)
	}
	if len(entries) != 1 || entries[0].OrderID != "ord-1" {
		t.Errorf("tracked list = %+v, want the locking entry for ord-1", entries)
	}
}

func TestRemoveEndpointDropsEntry(t *testing.T) {
	srv, tr := newTestAPI(t)

	status := common.StatusError
	tr.Upsert("ord-err", tracker.Patch{Status: &status})

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/orders/v1.0/tracked/ord-err", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE tracked: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if _, ok := tr.Get("ord-err"); ok {
		t.Error("entry still tracked after delete")
	}
}
