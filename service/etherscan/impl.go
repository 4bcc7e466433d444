package etherscan

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/songgrid/goapi/base/backoff"
	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/log"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/ownership"
)

func NewClient(cfg *ClientCfg) Client {
	c := &client{
		client:     cfg.HttpClient,
		timeout:    cfg.Timeout,
		apikey:     cfg.Apikey,
		apiUrl:     cfg.ApiUrl,
		maxRetries: cfg.MaxRetries,
		retryStart: cfg.RetryInitialDelay,
		retryLimit: cfg.RetryMaxDelay,
	}
	if c.apiUrl == "" {
		c.apiUrl = apiUrl
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.retryStart == 0 {
		c.retryStart = defaultRetryInitialDelay
	}
	if c.retryLimit == 0 {
		c.retryLimit = defaultRetryMaxDelay
	}
	return c
}

type client struct {
	client     http.Client
	timeout    time.Duration
	apikey     string
	apiUrl     string
	maxRetries int
	retryStart time.Duration
	retryLimit time.Duration
}

// errThrottled marks a rate-limited response inside the retry loop. The
// explorer reports throttling in-band with a 200 status, so the body has to
// be inspected.
var errThrottled = errors.New("throttled")

func (c *client) GetTokenTransfers(ctx bCtx.Ctx, contract domain.Address, page, offset int, sort domain.SortDir) ([]ownership.TransferEvent, error) {
	if contract.IsEmpty() || c.apikey == "" {
		return nil, domain.ErrConfigurationMissing
	}
	if page < 1 {
		page = 1
	}
	if offset <= 0 || offset > MaxTransfersPerPage {
		offset = MaxTransfersPerPage
	}
	if sort != domain.SortDirAsc && sort != domain.SortDirDesc {
		sort = domain.SortDirDesc
	}

	fullUrl := fmt.Sprintf(
		"%s?module=account&action=tokennfttx&contractaddress=%s&page=%d&offset=%d&sort=%s&apikey=%s",
		c.apiUrl, contract.ToLowerStr(), page, offset, sort, c.apikey,
	)

	bo := backoff.NewJitteredExponential(c.retryStart, c.retryLimit, retryJitterFraction)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			ctx.WithFields(log.Fields{
				"contract": contract,
				"page":     page,
				"attempt":  attempt,
				"max":      c.maxRetries,
			}).Warn("transfer history request retrying")
			if err := bo.Backoff(ctx); err != nil {
				return nil, err
			}
		}

		transfers, retryable, err := c.doOnce(ctx, fullUrl)
		if err == nil {
			return transfers, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == errThrottled {
		ctx.WithFields(log.Fields{"contract": contract, "page": page}).Error("transfer history retry budget exhausted")
		return nil, domain.ErrRateLimitExceeded
	}
	return nil, lastErr
}

func (c *client) doOnce(ctx bCtx.Ctx, fullUrl string) (transfers []ownership.TransferEvent, retryable bool, err error) {
	ctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", fullUrl, nil)
	if err != nil {
		return nil, false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, errThrottled
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &domain.ApiError{Status: resp.StatusCode, Message: resp.Status}
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	var envelope struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Result  json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, false, domain.ErrMalformedResponse
	}

	if envelope.Status != "1" {
		// result carries a string description on failures
		var detail string
		_ = json.Unmarshal(envelope.Result, &detail)
		if strings.Contains(strings.ToLower(detail), "rate limit") {
			return nil, true, errThrottled
		}
		// "No transactions found" and friends mean the page is past the end
		return nil, false, nil
	}

	var rows []rawTransfer
	if err := json.Unmarshal(envelope.Result, &rows); err != nil {
		// a non-array result with status 1 is treated as end of history
		return nil, false, nil
	}

	transfers = make([]ownership.TransferEvent, 0, len(rows))
	for _, row := range rows {
		transfers = append(transfers, normalizeTransfer(row))
	}
	return transfers, false, nil
}

func normalizeTransfer(row rawTransfer) ownership.TransferEvent {
	ev := ownership.TransferEvent{
		From: domain.Address(row.From).ToLower(),
		To:   domain.Address(row.To).ToLower(),
	}
	if id, err := domain.TokenId(row.TokenID).Normalize(); err == nil {
		ev.TokenId = id
	}
	return ev
}
