package domain

import (
	"math/big"
	"strings"

	"golang.org/x/xerrors"
)

type SortDir string

const (
	SortDirAsc  SortDir = "asc"
	SortDirDesc SortDir = "desc"
)

type ChainId int32

type Address string

// BurnAddress is the zero address; transfers to or from it are mints and
// burns, never ownership
const BurnAddress = Address("0x0000000000000000000000000000000000000000")

func (a Address) ToLower() Address {
	return Address(strings.ToLower(string(a)))
}

func (a Address) ToLowerStr() string {
	return strings.ToLower(string(a))
}

func (a Address) IsEmpty() bool {
	return len(a) == 0
}

func (a Address) IsBurn() bool {
	return a.ToLower() == BurnAddress
}

func (a Address) Equals(b Address) bool {
	return a.ToLowerStr() == b.ToLowerStr()
}

type TokenId string

func (i TokenId) String() string {
	return string(i)
}

// Normalize parses the id as a decimal integer and returns its canonical
// string form, so "007" and "7" collapse to one key.
func (i TokenId) Normalize() (TokenId, error) {
	id, ok := new(big.Int).SetString(string(i), 10)
	if !ok {
		return "", xerrors.Errorf("invalid token id %s", i)
	}
	return TokenId(id.String()), nil
}

// CollectionSlug is resolved once from a contract address and treated as an
// immutable fact for the session
type CollectionSlug string

type OrderHash string

type TxHash string
