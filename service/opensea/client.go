package opensea

import (
	"net/http"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/ptr"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
)

const (
	// marketplace-enforced page caps
	MaxListingsPerPage = 100
	MaxEventsPerPage   = 50
	MaxNftsPerPage     = 200

	defaultMaxPages          = 20
	defaultMaxRetries        = 5
	defaultRetryInitialDelay = time.Second
	defaultRetryMaxDelay     = 16 * time.Second
	retryJitterFraction      = 0.2

	apiV2 = "https://api.opensea.io/api/v2"
)

// TokenOwner pairs a song with its first reported owner
type TokenOwner struct {
	TokenId domain.TokenId `json:"tokenId"`
	Owner   domain.Address `json:"owner"`
}

type Client interface {
	// GetCollectionSlug resolves the collection slug for a contract address
	GetCollectionSlug(c bCtx.Ctx, contract domain.Address) (domain.CollectionSlug, error)
	// GetAllListings walks every page of active listings for the collection
	GetAllListings(c bCtx.Ctx, slug domain.CollectionSlug, opts ...PageOptionsFunc) ([]listing.Listing, error)
	// GetBestListings walks the server-deduplicated best-listing-per-song pages
	GetBestListings(c bCtx.Ctx, slug domain.CollectionSlug, opts ...PageOptionsFunc) ([]listing.Listing, error)
	// GetBestListingForToken returns the cheapest active listing for one
	// song, nil when the song has none
	GetBestListingForToken(c bCtx.Ctx, slug domain.CollectionSlug, tokenId domain.TokenId) (*listing.Listing, error)
	// GetCollectionEvents fetches recent activity, optionally filtered by
	// event type; limit is capped at MaxEventsPerPage
	GetCollectionEvents(c bCtx.Ctx, slug domain.CollectionSlug, eventType string, limit int) ([]listing.SaleEvent, error)
	// GetOwnersSample fetches owners of the first batch of songs. A sample
	// only; large collections need the transfer-history reconstruction.
	GetOwnersSample(c bCtx.Ctx, slug domain.CollectionSlug, limit int) ([]TokenOwner, error)
}

type ClientCfg struct {
	HttpClient http.Client
	Timeout    time.Duration
	Apikey     string
	Chain      string
	// ApiUrl overrides the marketplace base url, for tests
	ApiUrl string
	// MaxRetries bounds throttle/transport retries per request
	MaxRetries int
	// RetryInitialDelay, RetryMaxDelay shape the backoff between retries
	RetryInitialDelay time.Duration
	RetryMaxDelay     time.Duration
}

type pageOptions struct {
	PageSize  *int
	MaxPages  *int
	PageDelay *time.Duration
	Progress  listing.ProgressFunc
}

type PageOptionsFunc func(*pageOptions) error

func parsePageOptions(opts ...PageOptionsFunc) (pageOptions, error) {
	opt := pageOptions{}
	for _, f := range opts {
		if err := f(&opt); err != nil {
			return opt, err
		}
	}
	return opt, nil
}

func WithPageSize(pageSize int) PageOptionsFunc {
	return func(opt *pageOptions) error {
		opt.PageSize = ptr.Int(pageSize)
		return nil
	}
}

func WithMaxPages(maxPages int) PageOptionsFunc {
	return func(opt *pageOptions) error {
		opt.MaxPages = ptr.Int(maxPages)
		return nil
	}
}

// WithPageDelay inserts a cooperative pause between page requests to stay
// under the marketplace rate limit
func WithPageDelay(delay time.Duration) PageOptionsFunc {
	return func(opt *pageOptions) error {
		opt.PageDelay = ptr.Duration(delay)
		return nil
	}
}

func WithProgress(progress listing.ProgressFunc) PageOptionsFunc {
	return func(opt *pageOptions) error {
		opt.Progress = progress
		return nil
	}
}

// raw wire shapes; normalize.go converts them into domain types before any
// business logic sees them

type listingsResp struct {
	Listings []rawListing `json:"listings"`
	Next     string       `json:"next"`
}

type rawListing struct {
	OrderHash string `json:"order_hash"`
	Price     struct {
		Current struct {
			Currency string `json:"currency"`
			Decimals int32  `json:"decimals"`
			Value    string `json:"value"`
		} `json:"current"`
	} `json:"price"`
	ProtocolData struct {
		Parameters struct {
			Offer []struct {
				IdentifierOrCriteria string `json:"identifierOrCriteria"`
			} `json:"offer"`
		} `json:"parameters"`
	} `json:"protocol_data"`
	OrderSource      string `json:"order_source"`
	OrderSourceName  string `json:"order_source_name"`
	OrderProvider    string `json:"order_provider"`
	CreatedDate      string `json:"created_date"`
	OrderCreatedDate string `json:"order_created_date"`
	ListingDate      string `json:"listing_date"`
	UpdatedDate      string `json:"updated_date"`
}

type tokenListingResp struct {
	Listing  *rawListing  `json:"listing"`
	Listings []rawListing `json:"listings"`
}

type contractResp struct {
	Collection string `json:"collection"`
}

type eventsResp struct {
	AssetEvents []rawEvent `json:"asset_events"`
	Next        string     `json:"next"`
}

type rawEvent struct {
	EventType string `json:"event_type"`
	Nft       struct {
		Identifier string `json:"identifier"`
	} `json:"nft"`
	Payment struct {
		Quantity string `json:"quantity"`
		Symbol   string `json:"symbol"`
		Decimals int32  `json:"decimals"`
	} `json:"payment"`
	Seller         string `json:"seller"`
	Buyer          string `json:"buyer"`
	Transaction    string `json:"transaction"`
	EventTimestamp int64  `json:"event_timestamp"`
}

type nftsResp struct {
	Nfts []struct {
		Identifier string `json:"identifier"`
		Owners     []struct {
			Address  string `json:"address"`
			Quantity int64  `json:"quantity"`
		} `json:"owners"`
	} `json:"nfts"`
}

type errorResp struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors"`
}
