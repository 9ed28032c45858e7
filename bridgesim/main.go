// bridgesim is a local wallet-bridge simulator for development. It serves
// the bridge endpoints the service's wallet provider expects, backed by an
// ephemeral Algorand account, so the full connect/sign/disconnect flow can
// be exercised without a real wallet app.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
)

type bridge struct {
	mu        sync.Mutex
	account   crypto.Account
	connected bool

	events chan map[string]any
}

func main() {
	addr := flag.String("addr", ":9090", "listen address")
	flag.Parse()

	account := crypto.GenerateAccount()
	b := &bridge{
		account: account,
		events:  make(chan map[string]any, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", b.handleConnect)
	mux.HandleFunc("/session/reconnect", b.handleReconnect)
	mux.HandleFunc("/session/disconnect", b.handleDisconnect)
	mux.HandleFunc("/sign", b.handleSign)
	mux.HandleFunc("/events", b.handleEvents)
	mux.HandleFunc("/simulate/disconnect", b.handleSimulateDisconnect)

	fmt.Printf("bridge simulator listening on %s\n", *addr)
	fmt.Printf("simulated wallet account: %s\n", account.Address.String())
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func (b *bridge) handleConnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.connected = true
	addr := b.account.Address.String()
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"accounts": []string{addr}})
}

func (b *bridge) handleReconnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "no previous session found",
			"code":  "no_session",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": []string{b.account.Address.String()}})
}

func (b *bridge) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (b *bridge) handleSign(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Txn    string `json:"txn"`
		Signer string `json:"signer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed request", "code": "bad_request"})
		return
	}

	b.mu.Lock()
	connected := b.connected
	account := b.account
	b.mu.Unlock()

	if !connected {
		writeJSON(w, http.StatusUnauthorized, map[string]any{
			"error": "wallet is not connected",
			"code":  "no_session",
		})
		return
	}
	if req.Signer != account.Address.String() {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": "unknown signer",
			"code":  "user_rejected",
		})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.Txn)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "malformed transaction", "code": "bad_request"})
		return
	}
	var txn sdktypes.Transaction
	if err := msgpack.Decode(raw, &txn); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "undecodable transaction", "code": "bad_request"})
		return
	}

	_, signed, err := crypto.SignTransaction(account.PrivateKey, txn)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error(), "code": "sign_failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"blob": base64.StdEncoding.EncodeToString(signed),
	})
}

// handleEvents long-polls for pushes; a simulated disconnect queued through
// /simulate/disconnect is delivered here.
func (b *bridge) handleEvents(w http.ResponseWriter, r *http.Request) {
	select {
	case ev := <-b.events:
		writeJSON(w, http.StatusOK, map[string]any{"events": []any{ev}})
	case <-r.Context().Done():
	}
}

func (b *bridge) handleSimulateDisconnect(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	b.events <- map[string]any{"type": "disconnect"}
	writeJSON(w, http.StatusOK, map[string]any{"message": "disconnect queued"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
