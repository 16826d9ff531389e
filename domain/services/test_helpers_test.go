package services

import (
	"fmt"
	"time"

	"raffler/domain/entities"
)

const (
	// zeroSeed is 32 zero bytes
	zeroSeed = "0000000000000000000000000000000000000000000000000000000000000000"
	// seedPickingSix makes the first NextUniformInt(0, 10) return 6
	seedPickingSix = "391790355538ede380cce0726d47ed1b98f15369865cbf1be7e495f27165af3a"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type walletUnits struct {
	wallet string
	units  int64
}

// makeEntries builds entries created one second apart, IDs starting at 1
func makeEntries(raffleID int64, purchases ...walletUnits) []*entities.Entry {
	entries := make([]*entities.Entry, 0, len(purchases))
	for i, p := range purchases {
		entries = append(entries, &entities.Entry{
			ID:             int64(i + 1),
			RaffleID:       raffleID,
			Wallet:         p.wallet,
			Units:          p.units,
			AmountPaid:     p.units * 100,
			TransferTxHash: fmt.Sprintf("tx-%s-%d", p.wallet, i),
			CreatedAt:      testEpoch.Add(time.Duration(i) * time.Second),
		})
	}
	return entries
}

// scenarioEntries is A:5, B:3, C:2
func scenarioEntries() []*entities.Entry {
	return makeEntries(1, walletUnits{"A", 5}, walletUnits{"B", 3}, walletUnits{"C", 2})
}
