package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func rpcServer(t *testing.T, method string, result interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != method {
			t.Errorf("expected method %s, got %s", method, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", map[string]interface{}{
		"value": map[string]interface{}{
			"lamports":   uint64(2039280),
			"owner":      "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA",
			"data":       []string{"dGVzdA==", "base64"},
			"executable": false,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "someaccount")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info == nil {
		t.Fatal("expected account info, got nil")
	}
	if info.Lamports != 2039280 {
		t.Errorf("expected lamports 2039280, got %d", info.Lamports)
	}
	if info.Owner != "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA" {
		t.Errorf("unexpected owner %s", info.Owner)
	}
	if info.Data != "dGVzdA==" {
		t.Errorf("unexpected data %s", info.Data)
	}
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := rpcServer(t, "getAccountInfo", map[string]interface{}{
		"value": nil,
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for missing account, got %+v", info)
	}
}

func TestHTTPClient_GetMultipleAccounts_PreservesOrder(t *testing.T) {
	server := rpcServer(t, "getMultipleAccounts", map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{"lamports": uint64(1), "owner": "o1", "data": []string{"", "base64"}},
			nil,
			map[string]interface{}{"lamports": uint64(3), "owner": "o3", "data": []string{"", "base64"}},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("GetMultipleAccounts: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(infos))
	}
	if infos[0] == nil || infos[0].Lamports != 1 {
		t.Errorf("entry 0 wrong: %+v", infos[0])
	}
	if infos[1] != nil {
		t.Errorf("entry 1 should be nil for missing account")
	}
	if infos[2] == nil || infos[2].Owner != "o3" {
		t.Errorf("entry 2 wrong: %+v", infos[2])
	}
}

func TestHTTPClient_GetLatestBlockhash(t *testing.T) {
	server := rpcServer(t, "getLatestBlockhash", map[string]interface{}{
		"value": map[string]interface{}{
			"blockhash":            "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N",
			"lastValidBlockHeight": uint64(3090),
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	bh, err := client.GetLatestBlockhash(context.Background())
	if err != nil {
		t.Fatalf("GetLatestBlockhash: %v", err)
	}
	if bh.Blockhash != "EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N" {
		t.Errorf("unexpected blockhash %s", bh.Blockhash)
	}
	if bh.LastValidBlockHeight != 3090 {
		t.Errorf("unexpected height %d", bh.LastValidBlockHeight)
	}
}

func TestHTTPClient_SimulateTransaction_Error(t *testing.T) {
	server := rpcServer(t, "simulateTransaction", map[string]interface{}{
		"value": map[string]interface{}{
			"err":  map[string]interface{}{"InstructionError": []interface{}{0, "InvalidArgument"}},
			"logs": []string{"Program failed"},
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	res, err := client.SimulateTransaction(context.Background(), "dHg=")
	if err != nil {
		t.Fatalf("SimulateTransaction: %v", err)
	}
	if !res.Failed() {
		t.Error("expected failed simulation")
	}
	if len(res.Logs) != 1 {
		t.Errorf("expected 1 log line, got %d", len(res.Logs))
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := rpcServer(t, "sendTransaction", "5igDhPRDnYxY")
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sig, err := client.SendTransaction(context.Background(), "dHg=")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if sig != "5igDhPRDnYxY" {
		t.Errorf("unexpected signature %s", sig)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := rpcServer(t, "getSignatureStatuses", map[string]interface{}{
		"value": []interface{}{
			map[string]interface{}{
				"slot":               int64(48),
				"err":                nil,
				"confirmationStatus": "confirmed",
			},
			nil,
		},
	})
	defer server.Close()

	client := NewHTTPClient(server.URL)
	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"sig1", "sig2"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(statuses))
	}
	if !statuses[0].Confirmed() {
		t.Error("expected first signature confirmed")
	}
	if statuses[1] != nil {
		t.Error("expected nil for unknown signature")
	}
}

func TestSignatureStatus_ConfirmedRequiresNoError(t *testing.T) {
	s := &SignatureStatus{ConfirmationStatus: "confirmed", Err: map[string]interface{}{"InstructionError": nil}}
	if s.Confirmed() {
		t.Error("status with error must not count as confirmed")
	}
	var nilStatus *SignatureStatus
	if nilStatus.Confirmed() {
		t.Error("nil status must not count as confirmed")
	}
}

func TestHTTPClient_RetriesOn429(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": uint64(777)},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithRetryDelay(10*time.Millisecond))
	balance, err := client.GetBalance(context.Background(), "wallet")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if balance != 777 {
		t.Errorf("expected balance 777, got %d", balance)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}
