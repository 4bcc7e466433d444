package usecase

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"golang.org/x/xerrors"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
	"github.com/songgrid/goapi/domain/search"
	"github.com/songgrid/goapi/service/cache/provider/primitive"
	"github.com/songgrid/goapi/service/opensea"
)

type mockOpenseaClient struct {
	mock.Mock
}

func (m *mockOpenseaClient) GetCollectionSlug(c bCtx.Ctx, contract domain.Address) (domain.CollectionSlug, error) {
	args := m.Called(c, contract)
	return args.Get(0).(domain.CollectionSlug), args.Error(1)
}

func (m *mockOpenseaClient) GetAllListings(c bCtx.Ctx, slug domain.CollectionSlug, opts ...opensea.PageOptionsFunc) ([]listing.Listing, error) {
	args := m.Called(c, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.Listing), args.Error(1)
}

func (m *mockOpenseaClient) GetBestListings(c bCtx.Ctx, slug domain.CollectionSlug, opts ...opensea.PageOptionsFunc) ([]listing.Listing, error) {
	args := m.Called(c, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.Listing), args.Error(1)
}

func (m *mockOpenseaClient) GetBestListingForToken(c bCtx.Ctx, slug domain.CollectionSlug, tokenId domain.TokenId) (*listing.Listing, error) {
	args := m.Called(c, slug, tokenId)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*listing.Listing), args.Error(1)
}

func (m *mockOpenseaClient) GetCollectionEvents(c bCtx.Ctx, slug domain.CollectionSlug, eventType string, limit int) ([]listing.SaleEvent, error) {
	args := m.Called(c, slug, eventType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]listing.SaleEvent), args.Error(1)
}

func (m *mockOpenseaClient) GetOwnersSample(c bCtx.Ctx, slug domain.CollectionSlug, limit int) ([]opensea.TokenOwner, error) {
	args := m.Called(c, slug, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]opensea.TokenOwner), args.Error(1)
}

type mockSearch struct {
	mock.Mock
}

func (m *mockSearch) Search(c bCtx.Ctx, keyword string, facetFilters []string) (*search.Result, error) {
	args := m.Called(c, keyword, facetFilters)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*search.Result), args.Error(1)
}

func (m *mockSearch) SongTitles(c bCtx.Ctx, tokenIds []domain.TokenId) (map[domain.TokenId]string, error) {
	args := m.Called(c, tokenIds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.TokenId]string), args.Error(1)
}

const (
	testContract = domain.Address("0x19b703f65aa7e1e775bd06c2aa0d0d08c80f1c45")
	testSlug     = domain.CollectionSlug("song-a-day")
)

type listingUseCaseSuite struct {
	suite.Suite

	ctx     bCtx.Ctx
	opensea *mockOpenseaClient
}

func TestListingUseCaseSuite(t *testing.T) {
	suite.Run(t, new(listingUseCaseSuite))
}

func (s *listingUseCaseSuite) SetupTest() {
	s.ctx = bCtx.Background()
	s.opensea = new(mockOpenseaClient)
}

func (s *listingUseCaseSuite) newUseCase() listing.Usecase {
	return New(&ListingUseCaseCfg{
		Opensea:        s.opensea,
		CacheProvider:  primitive.NewPrimitive("test", 1),
		AllowedSources: []string{"opensea"},
	})
}

func (s *listingUseCaseSuite) expectSlug() {
	s.opensea.On("GetCollectionSlug", mock.Anything, testContract).Return(testSlug, nil).Once()
}

func (s *listingUseCaseSuite) TestGetCheapestBestPath() {
	s.expectSlug()
	s.opensea.On("GetBestListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "3000", "opensea.io"),
		mkListing("1", "1000", "opensea.io"),
		mkListing("2", "2000", "shady.market"),
	}, nil).Once()

	u := s.newUseCase()
	got, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	// best pages still go through filter and reduction
	s.Require().Len(got, 1)
	s.Equal("1000", got[0].Amount().String())
	s.opensea.AssertExpectations(s.T())
}

func (s *listingUseCaseSuite) TestGetCheapestFallback() {
	s.expectSlug()
	s.opensea.On("GetBestListings", mock.Anything, testSlug).
		Return(nil, xerrors.New("best endpoint down")).Once()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "3000", "opensea.io"),
		mkListing("1", "1000", "opensea.io"),
	}, nil).Once()

	u := s.newUseCase()
	got, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("1000", got[0].Amount().String())
	s.opensea.AssertExpectations(s.T())
}

func (s *listingUseCaseSuite) TestGetCheapestFallbackOnEmptyBest() {
	s.expectSlug()
	s.opensea.On("GetBestListings", mock.Anything, testSlug).
		Return([]listing.Listing{}, nil).Once()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "1000", "opensea.io"),
	}, nil).Once()

	u := s.newUseCase()
	got, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("1000", got[0].Amount().String())
	s.opensea.AssertExpectations(s.T())
}

func (s *listingUseCaseSuite) TestGetCheapestFallbackError() {
	s.expectSlug()
	s.opensea.On("GetBestListings", mock.Anything, testSlug).
		Return(nil, xerrors.New("best endpoint down")).Once()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).
		Return(nil, domain.ErrRateLimitExceeded).Once()

	u := s.newUseCase()
	_, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().ErrorIs(err, domain.ErrRateLimitExceeded)
	s.opensea.AssertExpectations(s.T())
}

func (s *listingUseCaseSuite) TestSessionCacheAndRefresh() {
	// slug and crawl hit upstream once, then both calls are served from cache
	s.opensea.On("GetCollectionSlug", mock.Anything, testContract).Return(testSlug, nil).Twice()
	s.opensea.On("GetBestListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "1000", "opensea.io"),
	}, nil).Twice()

	u := s.newUseCase()
	_, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	_, err = u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	s.opensea.AssertNumberOfCalls(s.T(), "GetBestListings", 1)

	// refresh drops the crawl cache but not the slug memo
	s.Require().NoError(u.RefreshListings(s.ctx, testContract))
	_, err = u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	s.opensea.AssertNumberOfCalls(s.T(), "GetBestListings", 2)
	s.opensea.AssertNumberOfCalls(s.T(), "GetCollectionSlug", 1)
}

func (s *listingUseCaseSuite) TestFailureNotCached() {
	s.opensea.On("GetCollectionSlug", mock.Anything, testContract).Return(testSlug, nil)
	s.opensea.On("GetBestListings", mock.Anything, testSlug).
		Return(nil, xerrors.New("down")).Twice()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).
		Return(nil, domain.ErrRateLimitExceeded).Once()

	u := s.newUseCase()
	_, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().Error(err)

	// the error was not cached; the next call crawls again and succeeds
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "1000", "opensea.io"),
	}, nil).Once()
	got, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *listingUseCaseSuite) TestCountListedTokens() {
	s.expectSlug()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "1000", "opensea.io"),
		mkListing("1", "2000", "opensea.io"),
		mkListing("2", "1000", "opensea.io"),
		mkListing("3", "1000", "shady.market"),
	}, nil).Once()

	u := s.newUseCase()
	count, err := u.CountListedTokens(s.ctx, testContract)
	s.Require().NoError(err)
	s.Equal(2, count)

	// second call is served from cache
	count, err = u.CountListedTokens(s.ctx, testContract)
	s.Require().NoError(err)
	s.Equal(2, count)
	s.opensea.AssertNumberOfCalls(s.T(), "GetAllListings", 1)
}

func (s *listingUseCaseSuite) TestGetForSale() {
	s.expectSlug()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("2", "3000000000000000000", "opensea.io"),
		mkListing("1", "1000000000000000000", "opensea.io"),
	}, nil).Once()

	searchMock := new(mockSearch)
	searchMock.On("SongTitles", mock.Anything, mock.Anything).
		Return(map[domain.TokenId]string{"1": "Monday Song"}, nil).Once()

	u := New(&ListingUseCaseCfg{
		Opensea:        s.opensea,
		Search:         searchMock,
		CacheProvider:  primitive.NewPrimitive("test", 1),
		AllowedSources: []string{"opensea"},
	})

	items, err := u.GetForSale(s.ctx, testContract)
	s.Require().NoError(err)
	s.Require().Len(items, 2)
	// sorted by price ascending
	s.Equal(domain.TokenId("1"), items[0].Listing.TokenId)
	s.Equal("1", items[0].DisplayPrice)
	s.Equal("Monday Song", items[0].SongName)
	s.Equal("", items[1].SongName)
}

func (s *listingUseCaseSuite) TestGetForSaleTitleLookupDegrades() {
	s.expectSlug()
	s.opensea.On("GetAllListings", mock.Anything, testSlug).Return([]listing.Listing{
		mkListing("1", "1000", "opensea.io"),
	}, nil).Once()

	searchMock := new(mockSearch)
	searchMock.On("SongTitles", mock.Anything, mock.Anything).
		Return(nil, xerrors.New("index down")).Once()

	u := New(&ListingUseCaseCfg{
		Opensea:       s.opensea,
		Search:        searchMock,
		CacheProvider: primitive.NewPrimitive("test", 1),
	})

	items, err := u.GetForSale(s.ctx, testContract)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal("", items[0].SongName)
}

func (s *listingUseCaseSuite) TestGetTokenListing() {
	s.expectSlug()
	best := mkListing("7", "1000", "opensea.io")
	s.opensea.On("GetBestListingForToken", mock.Anything, testSlug, domain.TokenId("7")).
		Return(&best, nil).Once()

	u := s.newUseCase()
	got, err := u.GetTokenListing(s.ctx, testContract, "007")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(domain.TokenId("7"), got.TokenId)

	_, err = u.GetTokenListing(s.ctx, testContract, "not-a-number")
	s.Require().ErrorIs(err, domain.ErrBadParamInput)
}

func (s *listingUseCaseSuite) TestGetActivity() {
	s.expectSlug()
	s.opensea.On("GetCollectionEvents", mock.Anything, testSlug, "sale", 25).
		Return([]listing.SaleEvent{{TokenId: "7", EventType: "sale"}}, nil).Once()

	u := s.newUseCase()
	events, err := u.GetActivity(s.ctx, testContract, "sale", 25)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(domain.TokenId("7"), events[0].TokenId)
}

func (s *listingUseCaseSuite) TestSlugErrorPropagates() {
	s.opensea.On("GetCollectionSlug", mock.Anything, testContract).
		Return(domain.CollectionSlug(""), domain.ErrConfigurationMissing).Once()

	u := s.newUseCase()
	_, err := u.GetCheapestListings(s.ctx, testContract)
	s.Require().ErrorIs(err, domain.ErrConfigurationMissing)
}
