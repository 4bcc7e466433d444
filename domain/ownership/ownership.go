package ownership

import (
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/ptr"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
)

// TransferEvent is one row of a token transfer log, normalized at the
// history-API boundary
type TransferEvent struct {
	From    domain.Address
	To      domain.Address
	TokenId domain.TokenId
}

// Collector maps one address to the songs it currently holds
type Collector struct {
	Address domain.Address   `json:"address"`
	Tokens  []domain.TokenId `json:"tokens"`
	Count   int              `json:"count"`
}

// Result is a reconstructed ownership snapshot. Collectors are sorted by
// Count descending; TotalScanned counts transfer records processed.
type Result struct {
	Collectors   []Collector `json:"collectors"`
	TotalScanned int         `json:"totalScanned"`
}

type getCollectorsOptions struct {
	PageSize *int
	MaxPages *int
	Sort     *domain.SortDir
	Progress listing.ProgressFunc
}

type GetCollectorsOptionsFunc func(*getCollectorsOptions) error

func GetGetCollectorsOptions(opts ...GetCollectorsOptionsFunc) (getCollectorsOptions, error) {
	res := getCollectorsOptions{}
	for _, opt := range opts {
		if err := opt(&res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func WithPageSize(pageSize int) GetCollectorsOptionsFunc {
	return func(options *getCollectorsOptions) error {
		options.PageSize = ptr.Int(pageSize)
		return nil
	}
}

func WithMaxPages(maxPages int) GetCollectorsOptionsFunc {
	return func(options *getCollectorsOptions) error {
		options.MaxPages = ptr.Int(maxPages)
		return nil
	}
}

func WithSort(sort domain.SortDir) GetCollectorsOptionsFunc {
	return func(options *getCollectorsOptions) error {
		options.Sort = &sort
		return nil
	}
}

func WithProgress(progress listing.ProgressFunc) GetCollectorsOptionsFunc {
	return func(options *getCollectorsOptions) error {
		options.Progress = progress
		return nil
	}
}

type Usecase interface {
	// GetCollectors replays the transfer log of the contract and returns the
	// current owner-to-songs mapping
	GetCollectors(c ctx.Ctx, contract domain.Address, opts ...GetCollectorsOptionsFunc) (*Result, error)
}
