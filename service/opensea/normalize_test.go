package opensea

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/songgrid/goapi/domain"
)

func Test_NormalizeListing_Fallbacks(t *testing.T) {
	var raw rawListing
	raw.Price.Current.Value = "not-a-number"
	raw.OrderSourceName = "blur.io"
	raw.OrderCreatedDate = "2024-03-01T08:00:00"

	l := normalizeListing(raw)
	assert.False(t, l.HasTokenId())
	assert.Equal(t, "0", l.Amount().String())
	assert.Equal(t, "blur.io", l.Source)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), l.CreatedAt)
}

func Test_NormalizeListing_TokenIdCanonical(t *testing.T) {
	var raw rawListing
	raw.ProtocolData.Parameters.Offer = []struct {
		IdentifierOrCriteria string `json:"identifierOrCriteria"`
	}{{IdentifierOrCriteria: "007"}}

	l := normalizeListing(raw)
	assert.Equal(t, domain.TokenId("7"), l.TokenId)
}

func Test_NormalizeListing_SourcePriority(t *testing.T) {
	var raw rawListing
	raw.OrderSource = "opensea.io"
	raw.OrderSourceName = "blur.io"

	assert.Equal(t, "opensea.io", normalizeListing(raw).Source)
}

func Test_ParseErrorBody(t *testing.T) {
	assert.Equal(t, "a, b", parseErrorBody([]byte(`{"errors":["a","b"]}`), "500"))
	assert.Equal(t, "boom", parseErrorBody([]byte(`{"message":"boom"}`), "500"))
	assert.Equal(t, "plain", parseErrorBody([]byte(`"plain"`), "500"))
	assert.Equal(t, "500", parseErrorBody([]byte(`garbage`), "500"))
}
