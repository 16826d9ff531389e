package entities

// TransferOutput is one recipient of an on-chain transfer
type TransferOutput struct {
	Address string
	Amount  int64
}

// TransferReceipt is the chain's view of a submitted transfer
type TransferReceipt struct {
	TxHash        string
	Succeeded     bool
	Confirmations int64
	BlockHash     string
	Sender        string
	Outputs       []TransferOutput
}

// AmountTo sums the outputs paying address
func (r *TransferReceipt) AmountTo(address string) int64 {
	var total int64
	for _, out := range r.Outputs {
		if out.Address == address {
			total += out.Amount
		}
	}
	return total
}

// TransferCheck is what an inbound transfer must match to back an entry
type TransferCheck struct {
	TxHash         string
	ExpectedSender string
	ExpectedAmount int64
	Recipient      string
}
