package domain

import "github.com/shopspring/decimal"

// PricePoint is one observation of a subnet pool, taken at FETCH time.
type PricePoint struct {
	Netuid      uint16
	BlockHash   string
	TimestampMs int64
	Price       decimal.Decimal
	TaoIn       Balance
	AlphaIn     Balance
}

// MonitorState is the persisted edge-detection state of the subnet monitor.
type MonitorState struct {
	Network      string
	SubnetCount  int
	LatestNetuid uint16
	UpdatedAt    int64 // Unix ms
}
