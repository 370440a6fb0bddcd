package domain

import "github.com/shopspring/decimal"

// RootNetuid is the static-price root network.
const RootNetuid uint16 = 0

// SubnetInfo is a per-cycle snapshot of one subnet's pricing state.
type SubnetInfo struct {
	Netuid    uint16
	Name      string
	Symbol    string
	Price     decimal.Decimal // TAO per alpha
	TaoIn     Balance         // TAO reserve of the subnet pool
	AlphaIn   Balance         // alpha reserve of the subnet pool
	IsDynamic bool
	Burn      Balance // current registration (recycle) cost
}

// StakeKey identifies a stake position.
type StakeKey struct {
	Hotkey string
	Netuid uint16
}

// StakeRecord is stake held by a coldkey on a hotkey in a subnet.
// Stake is denominated in the subnet's alpha (rao precision).
type StakeRecord struct {
	Hotkey  string
	Coldkey string
	Netuid  uint16
	Stake   Balance
}

// Key returns the lookup key for the record.
func (s StakeRecord) Key() StakeKey {
	return StakeKey{Hotkey: s.Hotkey, Netuid: s.Netuid}
}

// Snapshot is a consistent view of chain state read at one block hash.
type Snapshot struct {
	BlockHash   string
	BlockNumber uint64
	Coldkey     string
	Subnets     map[uint16]SubnetInfo
	Stakes      map[StakeKey]StakeRecord
	Balance     Balance // free balance of the coldkey
	FetchedAt   int64   // Unix ms
}

// Subnet returns the subnet for netuid.
func (s *Snapshot) Subnet(netuid uint16) (SubnetInfo, bool) {
	info, ok := s.Subnets[netuid]
	return info, ok
}

// Stake returns the stake for (hotkey, netuid). Zero-amount positions count as absent.
func (s *Snapshot) Stake(hotkey string, netuid uint16) (StakeRecord, bool) {
	rec, ok := s.Stakes[StakeKey{Hotkey: hotkey, Netuid: netuid}]
	if !ok || rec.Stake.IsZero() {
		return StakeRecord{}, false
	}
	return rec, true
}

// HasAnyStake reports whether the coldkey holds a non-zero stake anywhere.
func (s *Snapshot) HasAnyStake() bool {
	for _, rec := range s.Stakes {
		if !rec.Stake.IsZero() {
			return true
		}
	}
	return false
}
