package search

import (
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
)

// Hit is one search-index record. The core depends only on the object id
// correlating with a song's token id; every other attribute is passthrough.
type Hit struct {
	ObjectID   string                 `json:"objectID"`
	Name       string                 `json:"name,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

type Result struct {
	Hits []Hit `json:"hits"`
}

type Usecase interface {
	// Search runs a free-text query with optional facet filters
	Search(c ctx.Ctx, keyword string, facetFilters []string) (*Result, error)
	// SongTitles resolves token ids to song names; missing ids are absent
	// from the returned map, never an error
	SongTitles(c ctx.Ctx, tokenIds []domain.TokenId) (map[domain.TokenId]string, error)
}
