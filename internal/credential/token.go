// Package credential keeps the mint/ownership bookkeeping for one exam's
// credential tokens. Tokens are non-transferable by default: there is a mint
// path and ownership queries, nothing else.
package credential

import (
	"sync"

	"examledger/pkg/domain"
	dErrors "examledger/pkg/domain-errors"
)

// Config is the credential token's display identity.
type Config struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// Token is the per-exam credential ledger. Ids are minted monotonically
// starting at 1; id 0 is never valid.
type Token struct {
	mu      sync.RWMutex
	config  Config
	baseURI string
	supply  uint64
	owners  map[uint64]domain.Address
	owned   map[domain.Address][]uint64
}

func NewToken(config Config, baseURI string) *Token {
	return &Token{
		config:  config,
		baseURI: baseURI,
		owners:  make(map[uint64]domain.Address),
		owned:   make(map[domain.Address][]uint64),
	}
}

func (t *Token) Config() Config { return t.config }

// Mint issues the next token id to the given owner and returns it.
func (t *Token) Mint(to domain.Address) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.supply++
	id := t.supply
	t.owners[id] = to
	t.owned[to] = append(t.owned[to], id)
	return id
}

// Burn retires a minted id. Rollback path only: a credential that reached
// its holder is never burned. Burning the newest id frees it for reuse so a
// retried mint reproduces the same certificate identifier.
func (t *Token) Burn(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	owner, ok := t.owners[id]
	if !ok {
		return
	}
	delete(t.owners, id)
	held := t.owned[owner]
	for n, candidate := range held {
		if candidate == id {
			t.owned[owner] = append(held[:n], held[n+1:]...)
			break
		}
	}
	if id == t.supply {
		t.supply--
	}
}

// Supply returns the number of tokens minted so far.
func (t *Token) Supply() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply
}

// OwnerOf resolves a token id to its holder.
func (t *Token) OwnerOf(id uint64) (domain.Address, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	owner, ok := t.owners[id]
	if !ok {
		return "", dErrors.New(dErrors.CodeUnknownToken, "token id not minted")
	}
	return owner, nil
}

// TokensOfOwner enumerates the ids held by an address, in mint order.
func (t *Token) TokensOfOwner(owner domain.Address) []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]uint64{}, t.owned[owner]...)
}

// TokenURI resolves metadata for a minted id. Every minted id resolves to
// the base URI; there is no per-token suffix.
func (t *Token) TokenURI(id uint64) (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if _, ok := t.owners[id]; !ok {
		return "", dErrors.New(dErrors.CodeUnknownToken, "token id not minted")
	}
	return t.baseURI, nil
}

// SetBaseURI replaces the metadata base URI. Owner gating happens at the
// exam instance; the token trusts its caller.
func (t *Token) SetBaseURI(uri string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseURI = uri
}

// BaseURI returns the current metadata base URI.
func (t *Token) BaseURI() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.baseURI
}
