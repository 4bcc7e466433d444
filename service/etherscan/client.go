package etherscan

import (
	"net/http"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/ownership"
)

const (
	// MaxTransfersPerPage is the explorer's page cap for token transfer queries
	MaxTransfersPerPage = 1000

	defaultMaxRetries        = 5
	defaultRetryInitialDelay = time.Second
	defaultRetryMaxDelay     = 16 * time.Second
	retryJitterFraction      = 0.2

	apiUrl = "https://api.etherscan.io/api"
)

type Client interface {
	// GetTokenTransfers fetches one page of NFT transfer records for the
	// contract, oldest or newest first. Returns an empty page past the end
	// of history.
	GetTokenTransfers(c bCtx.Ctx, contract domain.Address, page, offset int, sort domain.SortDir) ([]ownership.TransferEvent, error)
}

type ClientCfg struct {
	HttpClient http.Client
	Timeout    time.Duration
	Apikey     string
	// ApiUrl overrides the explorer base url, for tests
	ApiUrl string
	// MaxRetries bounds throttle/transport retries per request
	MaxRetries        int
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

type rawTransfer struct {
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID string `json:"tokenID"`
	Hash    string `json:"hash"`
}
