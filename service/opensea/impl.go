package opensea

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	"github.com/songgrid/goapi/base/backoff"
	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/log"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
)

const bearerKey = "X-API-KEY"

func NewClient(cfg *ClientCfg) Client {
	c := &client{
		client:     cfg.HttpClient,
		timeout:    cfg.Timeout,
		apikey:     cfg.Apikey,
		chain:      cfg.Chain,
		apiUrl:     cfg.ApiUrl,
		maxRetries: cfg.MaxRetries,
		retryStart: cfg.RetryInitialDelay,
		retryLimit: cfg.RetryMaxDelay,
	}
	if c.chain == "" {
		c.chain = "ethereum"
	}
	if c.apiUrl == "" {
		c.apiUrl = apiV2
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
	chain      string
	apiUrl     string
	maxRetries int
	retryStart time.Duration
	retryLimit time.Duration
}

// get performs one authenticated request. Throttled (429) responses and
// transport failures are retried with exponential backoff plus jitter until
// the attempt budget runs out; both share the budget so the retry policy is
// deterministic. A 204 returns a nil body with no error.
func (c *client) get(ctx bCtx.Ctx, endpoint string) ([]byte, error) {
	fullUrl := c.apiUrl + endpoint
	bo := backoff.NewJitteredExponential(c.retryStart, c.retryLimit, retryJitterFraction)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			ctx.WithFields(log.Fields{
				"url":     fullUrl,
				"attempt": attempt,
				"max":     c.maxRetries,
				"delay":   bo.NextDuration.String(),
			}).Warn("marketplace request retrying")
			if err := bo.Backoff(ctx); err != nil {
				return nil, err
			}
		}

		body, retryable, err := c.doOnce(ctx, fullUrl)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	if lastErr == errThrottled {
		ctx.WithField("url", fullUrl).Error("marketplace retry budget exhausted")
		return nil, domain.ErrRateLimitExceeded
	}
	return nil, lastErr
}

// errThrottled marks a 429 inside the retry loop; it never escapes get
var errThrottled = errors.New("throttled")

func (c *client) doOnce(ctx bCtx.Ctx, fullUrl string) (body []byte, retryable bool, err error) {
	ctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", fullUrl, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set(bearerKey, c.apikey)
	req.Header.Set("accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// transport failure, retried on the same budget as throttles
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, errThrottled
	}

	if resp.StatusCode == http.StatusNoContent {
		return nil, false, nil
	}

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, &domain.ApiError{
			Status:  resp.StatusCode,
			Message: parseErrorBody(raw, resp.Status),
		}
	}

	return raw, false, nil
}

// parseErrorBody extracts a message from a best-effort decode of the error
// payload, falling back to the http status line
func parseErrorBody(raw []byte, fallback string) string {
	var er errorResp
	if err := json.Unmarshal(raw, &er); err == nil {
		if len(er.Errors) > 0 {
			msg := er.Errors[0]
			for _, e := range er.Errors[1:] {
				msg += ", " + e
			}
			return msg
		}
		if er.Message != "" {
			return er.Message
		}
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil && plain != "" {
		return plain
	}
	return fallback
}

func (c *client) GetCollectionSlug(ctx bCtx.Ctx, contract domain.Address) (domain.CollectionSlug, error) {
	if contract.IsEmpty() || c.apikey == "" {
		return "", domain.ErrConfigurationMissing
	}

	endpoint := fmt.Sprintf("/chain/%s/contract/%s", c.chain, contract.ToLowerStr())
	body, err := c.get(ctx, endpoint)
	if err != nil {
		ctx.WithFields(log.Fields{"contract": contract, "err": err}).Error("contract lookup failed")
		return "", err
	}

	var resp contractResp
	if err := json.Unmarshal(body, &resp); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return "", domain.ErrMalformedResponse
	}
	if resp.Collection == "" {
		return "", domain.ErrMalformedResponse
	}
	return domain.CollectionSlug(resp.Collection), nil
}

func (c *client) GetAllListings(ctx bCtx.Ctx, slug domain.CollectionSlug, opts ...PageOptionsFunc) ([]listing.Listing, error) {
	return c.fetchListingPages(ctx, fmt.Sprintf("/listings/collection/%s/all", slug), opts...)
}

func (c *client) GetBestListings(ctx bCtx.Ctx, slug domain.CollectionSlug, opts ...PageOptionsFunc) ([]listing.Listing, error) {
	return c.fetchListingPages(ctx, fmt.Sprintf("/listings/collection/%s/best", slug), opts...)
}

// fetchListingPages walks a cursor-paginated listings endpoint. The walk
// stops when the cursor comes back empty or maxPages is reached, so a
// misbehaving upstream cannot loop it forever.
func (c *client) fetchListingPages(ctx bCtx.Ctx, endpointBase string, opts ...PageOptionsFunc) ([]listing.Listing, error) {
	opt, err := parsePageOptions(opts...)
	if err != nil {
		return nil, err
	}

	pageSize := MaxListingsPerPage
	if opt.PageSize != nil && *opt.PageSize > 0 && *opt.PageSize < MaxListingsPerPage {
		pageSize = *opt.PageSize
	}
	maxPages := defaultMaxPages
	if opt.MaxPages != nil && *opt.MaxPages > 0 {
		maxPages = *opt.MaxPages
	}

	var all []listing.Listing
	cursor := ""
	for pagesFetched := 0; pagesFetched < maxPages; {
		if opt.Progress != nil {
			opt.Progress(float64(pagesFetched)/float64(maxPages),
				fmt.Sprintf("Fetching page %d of %d...", pagesFetched+1, maxPages))
		}

		endpoint := fmt.Sprintf("%s?limit=%d", endpointBase, pageSize)
		if cursor != "" {
			endpoint += "&cursor=" + url.QueryEscape(cursor)
		}

		body, err := c.get(ctx, endpoint)
		if err != nil {
			return nil, err
		}
		if body == nil {
			break
		}

		var resp listingsResp
		if err := json.Unmarshal(body, &resp); err != nil {
			ctx.WithFields(log.Fields{"endpoint": endpoint, "err": err}).Error("json.Unmarshal failed")
			return nil, domain.ErrMalformedResponse
		}

		for _, raw := range resp.Listings {
			all = append(all, normalizeListing(raw))
		}

		pagesFetched++
		cursor = resp.Next
		if cursor == "" {
			break
		}

		if pagesFetched < maxPages && opt.PageDelay != nil && *opt.PageDelay > 0 {
			t := time.NewTimer(*opt.PageDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			}
		}
	}

	if opt.Progress != nil {
		opt.Progress(1.0, fmt.Sprintf("Found %d listings", len(all)))
	}

	return all, nil
}

func (c *client) GetBestListingForToken(ctx bCtx.Ctx, slug domain.CollectionSlug, tokenId domain.TokenId) (*listing.Listing, error) {
	endpoint := fmt.Sprintf("/listings/collection/%s/nfts/%s/best", slug, tokenId)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if body == nil {
		// 204, song not listed
		return nil, nil
	}

	var resp tokenListingResp
	if err := json.Unmarshal(body, &resp); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, domain.ErrMalformedResponse
	}
	if resp.Listing != nil {
		l := normalizeListing(*resp.Listing)
		return &l, nil
	}
	if len(resp.Listings) > 0 {
		l := normalizeListing(resp.Listings[0])
		return &l, nil
	}
	return nil, nil
}

func (c *client) GetCollectionEvents(ctx bCtx.Ctx, slug domain.CollectionSlug, eventType string, limit int) ([]listing.SaleEvent, error) {
	if limit <= 0 || limit > MaxEventsPerPage {
		limit = MaxEventsPerPage
	}
	endpoint := fmt.Sprintf("/events/collection/%s?limit=%d", slug, limit)
	if eventType != "" {
		endpoint += "&event_type=" + url.QueryEscape(eventType)
	}

	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp eventsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, domain.ErrMalformedResponse
	}

	events := make([]listing.SaleEvent, 0, len(resp.AssetEvents))
	for _, raw := range resp.AssetEvents {
		events = append(events, normalizeEvent(raw))
	}
	return events, nil
}

func (c *client) GetOwnersSample(ctx bCtx.Ctx, slug domain.CollectionSlug, limit int) ([]TokenOwner, error) {
	if limit <= 0 || limit > MaxNftsPerPage {
		limit = MaxNftsPerPage
	}

	body, err := c.get(ctx, fmt.Sprintf("/collection/%s/nfts?limit=%d", slug, limit))
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}

	var resp nftsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, domain.ErrMalformedResponse
	}

	var owners []TokenOwner
	for _, nft := range resp.Nfts {
		if len(nft.Owners) == 0 {
			continue
		}
		owners = append(owners, TokenOwner{
			TokenId: domain.TokenId(nft.Identifier),
			Owner:   domain.Address(nft.Owners[0].Address).ToLower(),
		})
	}
	return owners, nil
}
