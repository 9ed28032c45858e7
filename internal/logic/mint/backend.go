package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/types"
)

// Backend submits mint payloads to the reward-issuance service.
type Backend interface {
	Mint(ctx context.Context, payload *types.MintPayload) (*types.MintResult, error)
}

type backendClient struct {
	endpoint string
	client   *http.Client
}

// NewBackend builds the HTTP minting backend client. Mint calls are not
// retried here: issuance is not idempotent and a timed-out request may
// still have minted.
func NewBackend(c config.MintConf) Backend {
	return &backendClient{
		endpoint: c.Endpoint,
		client: &http.Client{
			Timeout: time.Duration(c.TimeoutSeconds) * time.Second,
		},
	}
}

func (b *backendClient) Mint(ctx context.Context, payload *types.MintPayload) (*types.MintResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "encode mint payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "build mint request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendError, "minting backend unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendError, "read minting backend response", err)
	}

	var result types.MintResult
	if err := json.Unmarshal(raw, &result); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, errs.Wrap(errs.KindBackendError, "decode minting backend response", err)
		}
		// An unparseable error body still carries the status code.
		return nil, errs.Newf(errs.KindBackendError, "minting backend returned status %d", resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !result.Success {
		msg := result.Error
		if msg == "" {
			msg = fmt.Sprintf("minting backend returned status %d", resp.StatusCode)
		}
		return nil, errs.New(errs.KindBackendError, msg)
	}
	return &result, nil
}
