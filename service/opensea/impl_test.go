package opensea

import (
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
)

func newTestClient(serverUrl string) Client {
	return NewClient(&ClientCfg{
		HttpClient:        http.Client{},
		Timeout:           5 * time.Second,
		Apikey:            "test-key",
		ApiUrl:            serverUrl,
		RetryInitialDelay: time.Millisecond,
		RetryMaxDelay:     4 * time.Millisecond,
	})
}

func Test_GetCollectionSlug(t *testing.T) {
	req := require.New(t)
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		req.Equal("/chain/ethereum/contract/0x19b703f65aa7e1e775bd06c2aa0d0d08c80f1c45", r.URL.Path)
		fmt.Fprint(w, `{"collection":"song-a-day"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	slug, err := c.GetCollectionSlug(bCtx.Background(), "0x19b703F65aA7E1E775BD06c2aa0D0d08c80f1C45")
	req.NoError(err)
	req.Equal(domain.CollectionSlug("song-a-day"), slug)
	req.Equal("test-key", gotKey)
}

func Test_GetCollectionSlug_MissingConfig(t *testing.T) {
	req := require.New(t)
	c := NewClient(&ClientCfg{HttpClient: http.Client{}, Timeout: time.Second})
	_, err := c.GetCollectionSlug(bCtx.Background(), "0x19b703f65aa7e1e775bd06c2aa0d0d08c80f1c45")
	req.ErrorIs(err, domain.ErrConfigurationMissing)

	c = newTestClient("http://unused")
	_, err = c.GetCollectionSlug(bCtx.Background(), "")
	req.ErrorIs(err, domain.ErrConfigurationMissing)
}

func Test_RetryOnThrottle(t *testing.T) {
	req := require.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"collection":"song-a-day"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	slug, err := c.GetCollectionSlug(bCtx.Background(), "0xabc")
	req.NoError(err)
	req.Equal(domain.CollectionSlug("song-a-day"), slug)
	req.EqualValues(3, atomic.LoadInt32(&calls))
}

func Test_RetryBudgetExhausted(t *testing.T) {
	req := require.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetCollectionSlug(bCtx.Background(), "0xabc")
	req.ErrorIs(err, domain.ErrRateLimitExceeded)
	// initial try plus defaultMaxRetries retries
	req.EqualValues(defaultMaxRetries+1, atomic.LoadInt32(&calls))
}

func Test_ApiErrorBody(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":["Collection not found","try another slug"]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetAllListings(bCtx.Background(), "nope")
	var apiErr *domain.ApiError
	req.ErrorAs(err, &apiErr)
	req.Equal(http.StatusBadRequest, apiErr.Status)
	req.Equal("Collection not found, try another slug", apiErr.Message)
}

func listingJson(tokenId, value string) string {
	return fmt.Sprintf(`{
		"order_hash": "0xhash%s",
		"price": {"current": {"currency": "ETH", "decimals": 18, "value": "%s"}},
		"protocol_data": {"parameters": {"offer": [{"identifierOrCriteria": "%s"}]}},
		"order_source": "opensea.io",
		"created_date": "2024-01-15T10:30:00"
	}`, tokenId, value, tokenId)
}

func Test_GetAllListings_Pagination(t *testing.T) {
	req := require.New(t)
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		pages = append(pages, cursor)
		switch cursor {
		case "":
			fmt.Fprintf(w, `{"listings":[%s],"next":"page2"}`, listingJson("1", "1000"))
		case "page2":
			fmt.Fprintf(w, `{"listings":[%s,%s],"next":""}`, listingJson("2", "2000"), listingJson("3", "3000"))
		default:
			t.Errorf("unexpected cursor %q", cursor)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	listings, err := c.GetAllListings(bCtx.Background(), "song-a-day")
	req.NoError(err)
	req.Len(listings, 3)
	req.Equal([]string{"", "page2"}, pages)
	req.Equal(domain.TokenId("2"), listings[1].TokenId)
	req.Equal(big.NewInt(2000), listings[1].PriceAmount)
	req.Equal("opensea.io", listings[1].Source)
}

func Test_GetAllListings_MaxPagesCap(t *testing.T) {
	req := require.New(t)
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		// upstream always advertises another page
		fmt.Fprintf(w, `{"listings":[%s],"next":"cursor%d"}`, listingJson(fmt.Sprint(n), "100"), n)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	listings, err := c.GetAllListings(bCtx.Background(), "song-a-day", WithMaxPages(3))
	req.NoError(err)
	req.Len(listings, 3)
	req.EqualValues(3, atomic.LoadInt32(&calls))
}

func Test_GetAllListings_Progress(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"listings":[%s],"next":""}`, listingJson("1", "100"))
	}))
	defer srv.Close()

	var fractions []float64
	c := newTestClient(srv.URL)
	_, err := c.GetAllListings(bCtx.Background(), "song-a-day", WithProgress(func(p float64, _ string) {
		fractions = append(fractions, p)
	}))
	req.NoError(err)
	req.NotEmpty(fractions)
	req.Equal(1.0, fractions[len(fractions)-1])
	for i := 1; i < len(fractions); i++ {
		req.GreaterOrEqual(fractions[i], fractions[i-1])
	}
}

func Test_GetAllListings_MalformedPage(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"listings": "not an array"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.GetAllListings(bCtx.Background(), "song-a-day")
	req.ErrorIs(err, domain.ErrMalformedResponse)
}

func Test_GetBestListingForToken_NotListed(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	l, err := c.GetBestListingForToken(bCtx.Background(), "song-a-day", "42")
	req.NoError(err)
	req.Nil(l)
}

func Test_GetBestListingForToken(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/listings/collection/song-a-day/nfts/42/best", r.URL.Path)
		fmt.Fprintf(w, `{"listing":%s}`, listingJson("42", "5000"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	l, err := c.GetBestListingForToken(bCtx.Background(), "song-a-day", "42")
	req.NoError(err)
	req.NotNil(l)
	req.Equal(domain.TokenId("42"), l.TokenId)
	req.Equal(big.NewInt(5000), l.PriceAmount)
}

func Test_GetCollectionEvents(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req.Equal("sale", r.URL.Query().Get("event_type"))
		req.Equal("50", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `{"asset_events":[{
			"event_type": "sale",
			"nft": {"identifier": "7"},
			"payment": {"quantity": "1950000000000000000", "symbol": "ETH", "decimals": 18},
			"seller": "0xAAAA",
			"buyer": "0xBBBB",
			"transaction": "0xdeadbeef",
			"event_timestamp": 1700000000
		}]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	events, err := c.GetCollectionEvents(bCtx.Background(), "song-a-day", "sale", 999)
	req.NoError(err)
	req.Len(events, 1)
	ev := events[0]
	req.Equal(domain.TokenId("7"), ev.TokenId)
	req.Equal("sale", ev.EventType)
	req.Equal(domain.Address("0xaaaa"), ev.Seller)
	req.Equal(domain.Address("0xbbbb"), ev.Buyer)
	req.Equal(time.Unix(1700000000, 0).UTC(), ev.Timestamp)
	want, _ := new(big.Int).SetString("1950000000000000000", 10)
	req.Equal(want, ev.PriceAmount)
}

func Test_GetOwnersSample(t *testing.T) {
	req := require.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"nfts":[
			{"identifier": "1", "owners": [{"address": "0xAA", "quantity": 1}]},
			{"identifier": "2", "owners": []}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	owners, err := c.GetOwnersSample(bCtx.Background(), "song-a-day", 10)
	req.NoError(err)
	req.Len(owners, 1)
	req.Equal(domain.TokenId("1"), owners[0].TokenId)
	req.Equal(domain.Address("0xaa"), owners[0].Owner)
}
