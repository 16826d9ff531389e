package cache

import (
	"time"

	"raffler/domain/entities"

	"github.com/benbjohnson/clock"
)

// ReceiptCache caches transfer receipts by transaction hash so repeated
// entry submissions do not hit the chain node each time
type ReceiptCache struct {
	cache *TTLCache[string, *entities.TransferReceipt]
}

// NewReceiptCache creates a receipt cache whose entries live for ttl
func NewReceiptCache(ttl time.Duration, clk clock.Clock) *ReceiptCache {
	return &ReceiptCache{cache: NewTTLCache[string, *entities.TransferReceipt](ttl, clk)}
}

func (c *ReceiptCache) Get(txHash string) (*entities.TransferReceipt, bool) {
	return c.cache.Get(txHash)
}

func (c *ReceiptCache) Set(txHash string, receipt *entities.TransferReceipt) {
	c.cache.Set(txHash, receipt)
}

// Purge drops expired receipts
func (c *ReceiptCache) Purge() int {
	return c.cache.Purge()
}

// HashReservations tracks transfer hashes with an entry submission in
// flight, so two concurrent submissions of one hash cannot both proceed
type HashReservations struct {
	cache *TTLCache[string, struct{}]
}

// NewHashReservations creates a reservation set; a reservation that is
// never released lapses after ttl
func NewHashReservations(ttl time.Duration, clk clock.Clock) *HashReservations {
	return &HashReservations{cache: NewTTLCache[string, struct{}](ttl, clk)}
}

// Reserve claims txHash and reports whether the claim succeeded
func (r *HashReservations) Reserve(txHash string) bool {
	return r.cache.Reserve(txHash, struct{}{})
}

// Release drops the claim on txHash
func (r *HashReservations) Release(txHash string) {
	r.cache.Delete(txHash)
}

// Purge drops lapsed reservations
func (r *HashReservations) Purge() int {
	return r.cache.Purge()
}
