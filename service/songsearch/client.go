package songsearch

import (
	"net/http"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain/search"
)

// Client talks to the hosted search index holding one record per song,
// keyed by objectID equal to the token id.
type Client interface {
	// Query runs a free-text search with optional facet filters
	Query(c bCtx.Ctx, keyword string, facetFilters []string) (*search.Result, error)
	// GetObjects fetches records by objectID; unknown ids are skipped
	GetObjects(c bCtx.Ctx, objectIDs []string) ([]search.Hit, error)
	// Configured reports whether the client carries credentials; callers use
	// it to skip optional decoration instead of erroring
	Configured() bool
}

type ClientCfg struct {
	HttpClient http.Client
	Timeout    time.Duration
	AppId      string
	Apikey     string
	IndexName  string
	// ApiUrl overrides the search host, for tests
	ApiUrl string
}

type queryBody struct {
	Params string `json:"params"`
}

type objectsBody struct {
	Requests []objectRequest `json:"requests"`
}

type objectRequest struct {
	IndexName string `json:"indexName"`
	ObjectID  string `json:"objectID"`
}

type objectsResp struct {
	Results []*search.Hit `json:"results"`
}
