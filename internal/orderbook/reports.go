package orderbook

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/fundrate/funding-arb/pkg/types"
)

// Reports is the user-data signal surface between a venue's private stream
// and its trade coordinator. The stream appends raw payloads and flips the
// funding-collected and liquidated flags; the coordinator only reads.
type Reports struct {
	mu               sync.Mutex
	raw              [][]byte
	fundingCollected bool
	liquidated       bool
}

// NewReports creates an empty signal surface.
func NewReports() *Reports {
	return &Reports{}
}

// Append records one raw user-data payload.
func (r *Reports) Append(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = append(r.raw, payload)
}

// Raw returns a copy of all appended payloads.
func (r *Reports) Raw() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]byte, len(r.raw))
	copy(out, r.raw)
	return out
}

// MarkFundingCollected flags that the venue credited a funding fee.
func (r *Reports) MarkFundingCollected() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fundingCollected = true
}

// FundingCollected reports whether a funding fee was observed this session.
func (r *Reports) FundingCollected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fundingCollected
}

// MarkLiquidated flags a margin-call or bust-trade event.
func (r *Reports) MarkLiquidated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liquidated = true
}

// Liquidated reports whether the venue signalled a liquidation.
func (r *Reports) Liquidated() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.liquidated
}

// Clear drops everything. Called on stream error or close alongside the
// book reset.
func (r *Reports) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.raw = nil
	r.fundingCollected = false
	r.liquidated = false
}

// Balances mirrors the venue's streamed wallet balances.
type Balances struct {
	mu sync.Mutex
	m  map[string]types.Balance
}

// NewBalances creates an empty balance map.
func NewBalances() *Balances {
	return &Balances{m: make(map[string]types.Balance)}
}

// Set stores one asset's balance.
func (b *Balances) Set(asset string, total, available decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[asset] = types.Balance{Total: total, Available: available}
}

// Get returns one asset's balance.
func (b *Balances) Get(asset string) (types.Balance, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	bal, ok := b.m[asset]
	return bal, ok
}

// Clear drops all balances.
func (b *Balances) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m = make(map[string]types.Balance)
}
