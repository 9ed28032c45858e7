// Package catalog is the read-only client for the anime catalog service,
// which serves series metadata, published reward collections and creator
// attribution.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"otakuverse/internal/config"
	"otakuverse/internal/errs"
	"otakuverse/internal/types"
)

// Client fetches anime metadata by id.
type Client interface {
	GetAnime(ctx context.Context, animeID string) (*types.AnimeMetadata, error)
}

type httpClient struct {
	baseURL  string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// New builds the catalog client. Lookups are idempotent GETs, so transient
// failures and 5xx responses are retried with exponential backoff.
func New(c config.CatalogConf) Client {
	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(200*time.Millisecond, 2*time.Second).
		WithMaxRetries(c.MaxRetries).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			if resp != nil && resp.StatusCode >= 500 {
				resp.Body.Close()
				return true
			}
			return false
		}).
		Build()

	return &httpClient{
		baseURL: c.URL,
		client: &http.Client{
			Timeout: time.Duration(c.TimeoutSeconds) * time.Second,
		},
		executor: failsafe.With(retry),
	}
}

func (c *httpClient) GetAnime(ctx context.Context, animeID string) (*types.AnimeMetadata, error) {
	if animeID == "" {
		return nil, errs.New(errs.KindInvalidInput, "anime id is required")
	}
	endpoint := fmt.Sprintf("%s/api/anime/%s", c.baseURL, url.PathEscape(animeID))

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.client.Do(req)
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendError, "catalog unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.Newf(errs.KindInvalidInput, "anime %s not found", animeID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Newf(errs.KindBackendError, "catalog returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errs.Wrap(errs.KindBackendError, "read catalog response", err)
	}
	var anime types.AnimeMetadata
	if err := json.Unmarshal(raw, &anime); err != nil {
		return nil, errs.Wrap(errs.KindBackendError, "decode catalog response", err)
	}
	return &anime, nil
}
