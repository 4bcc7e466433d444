package songsearch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/log"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/search"
)

func NewClient(cfg *ClientCfg) Client {
	c := &client{
		client:    cfg.HttpClient,
		timeout:   cfg.Timeout,
		appId:     cfg.AppId,
		apikey:    cfg.Apikey,
		indexName: cfg.IndexName,
		apiUrl:    cfg.ApiUrl,
	}
	if c.apiUrl == "" && c.appId != "" {
		c.apiUrl = fmt.Sprintf("https://%s-dsn.algolia.net", c.appId)
	}
	return c
}

type client struct {
	client    http.Client
	timeout   time.Duration
	appId     string
	apikey    string
	indexName string
	apiUrl    string
}

func (c *client) Configured() bool {
	return c.appId != "" && c.apikey != "" && c.indexName != ""
}

func (c *client) Query(ctx bCtx.Ctx, keyword string, facetFilters []string) (*search.Result, error) {
	if !c.Configured() {
		return nil, domain.ErrConfigurationMissing
	}

	params := url.Values{}
	params.Set("query", keyword)
	if len(facetFilters) > 0 {
		filters, err := json.Marshal(facetFilters)
		if err != nil {
			return nil, err
		}
		params.Set("facetFilters", string(filters))
	}

	endpoint := fmt.Sprintf("/1/indexes/%s/query", url.PathEscape(c.indexName))
	body, err := c.post(ctx, endpoint, queryBody{Params: params.Encode()})
	if err != nil {
		return nil, err
	}

	var res search.Result
	if err := json.Unmarshal(body, &res); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, domain.ErrMalformedResponse
	}
	return &res, nil
}

func (c *client) GetObjects(ctx bCtx.Ctx, objectIDs []string) ([]search.Hit, error) {
	if !c.Configured() {
		return nil, domain.ErrConfigurationMissing
	}
	if len(objectIDs) == 0 {
		return nil, nil
	}

	reqs := make([]objectRequest, 0, len(objectIDs))
	for _, id := range objectIDs {
		reqs = append(reqs, objectRequest{IndexName: c.indexName, ObjectID: id})
	}

	body, err := c.post(ctx, "/1/indexes/*/objects", objectsBody{Requests: reqs})
	if err != nil {
		return nil, err
	}

	var resp objectsResp
	if err := json.Unmarshal(body, &resp); err != nil {
		ctx.WithField("err", err).Error("json.Unmarshal failed")
		return nil, domain.ErrMalformedResponse
	}

	hits := make([]search.Hit, 0, len(resp.Results))
	for _, hit := range resp.Results {
		// unknown ids come back as null entries
		if hit != nil {
			hits = append(hits, *hit)
		}
	}
	return hits, nil
}

func (c *client) post(ctx bCtx.Ctx, endpoint string, payload interface{}) ([]byte, error) {
	ctx, cancel := bCtx.WithTimeout(ctx, c.timeout)
	defer cancel()

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiUrl+endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Algolia-API-Key", c.apikey)
	req.Header.Set("X-Algolia-Application-Id", c.appId)
	req.Header.Set("content-type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		ctx.WithFields(log.Fields{"endpoint": endpoint, "err": err}).Error("search request failed")
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &domain.ApiError{Status: resp.StatusCode, Message: string(raw)}
	}
	return raw, nil
}
