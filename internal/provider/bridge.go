package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"otakuverse/internal/config"
	"otakuverse/internal/errs"
)

// bridgeProvider talks to the external Pera-style wallet bridge over
// HTTP/JSON. Push notifications are received by long-polling the bridge's
// events endpoint.
type bridgeProvider struct {
	baseURL string
	client  *http.Client
	// pollClient carries a longer timeout than the request client so the
	// events long-poll is bounded by its own context, not the RPC timeout.
	pollClient *http.Client
	logger     logx.Logger

	notifications chan Notification
	stop          chan struct{}
}

// NewBridge creates the production wallet provider and starts its
// notification poller.
func NewBridge(c config.WalletBridgeConf) Provider {
	p := &bridgeProvider{
		baseURL: c.URL,
		client: &http.Client{
			Timeout: time.Duration(c.TimeoutSeconds) * time.Second,
		},
		pollClient:    &http.Client{Timeout: 70 * time.Second},
		logger:        logx.WithContext(context.Background()),
		notifications: make(chan Notification, 8),
		stop:          make(chan struct{}),
	}
	go p.pollEvents()
	return p
}

type bridgeError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type accountsResponse struct {
	Accounts []string `json:"accounts"`
}

type signRequest struct {
	Txn    string `json:"txn"`
	Signer string `json:"signer"`
}

type signResponse struct {
	Blob string `json:"blob"`
}

type eventsResponse struct {
	Events []struct {
		Type     string   `json:"type"`
		Accounts []string `json:"accounts"`
	} `json:"events"`
}

func (p *bridgeProvider) Connect(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := p.post(ctx, "/connect", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (p *bridgeProvider) ReconnectSession(ctx context.Context) ([]string, error) {
	var resp accountsResponse
	if err := p.post(ctx, "/session/reconnect", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Accounts, nil
}

func (p *bridgeProvider) Disconnect(ctx context.Context) error {
	return p.post(ctx, "/session/disconnect", nil, nil)
}

func (p *bridgeProvider) SignTransaction(ctx context.Context, txn []byte, signer string) ([]byte, error) {
	req := signRequest{
		Txn:    base64.StdEncoding.EncodeToString(txn),
		Signer: signer,
	}
	var resp signResponse
	if err := p.post(ctx, "/sign", req, &resp); err != nil {
		return nil, err
	}
	blob, err := base64.StdEncoding.DecodeString(resp.Blob)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "bridge returned malformed signed blob", err)
	}
	return blob, nil
}

func (p *bridgeProvider) Notifications() <-chan Notification {
	return p.notifications
}

func (p *bridgeProvider) Close() {
	close(p.stop)
}

// post sends a JSON request to the bridge and decodes the response,
// classifying bridge error codes into the error taxonomy.
func (p *bridgeProvider) post(ctx context.Context, path string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindNoSession, "wallet bridge unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.KindNoSession, "failed to read bridge response", err)
	}

	if resp.StatusCode != http.StatusOK {
		var bridgeErr bridgeError
		if err := json.Unmarshal(raw, &bridgeErr); err == nil && bridgeErr.Code != "" {
			return classifyBridgeError(bridgeErr)
		}
		return errs.Newf(errs.KindInternal, "wallet bridge returned status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errs.Wrap(errs.KindInternal, "malformed bridge response", err)
		}
	}
	return nil
}

func classifyBridgeError(e bridgeError) error {
	msg := e.Error
	if msg == "" {
		msg = "wallet bridge error"
	}
	switch e.Code {
	case "user_rejected":
		return errs.New(errs.KindUserRejected, msg)
	case "pending_request":
		return errs.New(errs.KindProviderBusy, msg)
	case "no_session", "session_expired":
		return errs.New(errs.KindNoSession, msg)
	default:
		return errs.New(errs.KindInternal, msg)
	}
}

// pollEvents long-polls the bridge for disconnect and account-change
// pushes until Close.
func (p *bridgeProvider) pollEvents() {
	for {
		select {
		case <-p.stop:
			close(p.notifications)
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		events, err := p.fetchEvents(ctx)
		cancel()
		if err != nil {
			p.logger.Errorf("wallet bridge event poll failed: %v", err)
			select {
			case <-p.stop:
				close(p.notifications)
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, n := range events {
			select {
			case p.notifications <- n:
			case <-p.stop:
				close(p.notifications)
				return
			}
		}

		// A bridge that answers immediately instead of holding the poll
		// open would otherwise spin this loop hot.
		if len(events) == 0 {
			select {
			case <-p.stop:
				close(p.notifications)
				return
			case <-time.After(200 * time.Millisecond):
			}
		}
	}
}

func (p *bridgeProvider) fetchEvents(ctx context.Context) ([]Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/events", nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.pollClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("events endpoint returned status %d", resp.StatusCode)
	}

	var decoded eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	out := make([]Notification, 0, len(decoded.Events))
	for _, ev := range decoded.Events {
		switch ev.Type {
		case "disconnect":
			out = append(out, Notification{Kind: NotifyDisconnected})
		case "accounts_changed":
			out = append(out, Notification{Kind: NotifyAccountsChanged, Accounts: ev.Accounts})
		default:
			p.logger.Infof("ignoring unknown bridge event type %q", ev.Type)
		}
	}
	return out, nil
}
