package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Source fetches incoming transfers to a receiving address from the external
// ledger, newest first is not assumed; callers filter and order themselves.
type Source interface {
	FetchIncoming(ctx context.Context, address string, minTimestampMs int64) ([]Transfer, error)
}

const defaultPageLimit = 100

// Client is an HTTP Source against the explorer's REST API. Results are
// paged; the client follows the next-page token until the page is empty.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	pageLimit  int
}

func NewClient(baseURL, apiKey string, pageLimit int) *Client {
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		pageLimit:  pageLimit,
	}
}

var _ Source = (*Client)(nil)

func (c *Client) FetchIncoming(ctx context.Context, address string, minTimestampMs int64) ([]Transfer, error) {
	var out []Transfer
	next := ""

	for {
		page, err := c.fetchPage(ctx, address, minTimestampMs, next)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Data {
			if item.ToAddress != address {
				continue
			}
			if item.Amount <= 0 {
				continue
			}
			out = append(out, Transfer{
				TxHash:      item.TxID,
				FromAddress: item.FromAddress,
				ToAddress:   item.ToAddress,
				AmountNano:  item.Amount,
				Memo:        item.Memo,
				TimestampMs: item.BlockTimestamp,
			})
		}

		if page.Meta.Links.Next == "" {
			return out, nil
		}
		next = page.Meta.Links.Next
	}
}

func (c *Client) fetchPage(ctx context.Context, address string, minTimestampMs int64, next string) (*transactionResponse, error) {
	query := url.Values{}
	query.Set("min_timestamp", strconv.FormatInt(minTimestampMs, 10))
	query.Set("limit", strconv.Itoa(c.pageLimit))
	if next != "" {
		query.Set("next", next)
	}

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions?%s", c.baseURL, url.PathEscape(address), query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch transfers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch transfers: unexpected status %s", resp.Status)
	}

	var page transactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode transfers: %w", err)
	}
	return &page, nil
}
