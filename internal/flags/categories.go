package flags

const (
	WalletCategory  = "WALLET"
	ChainCategory   = "CHAIN"
	PolicyCategory  = "POLICY"
	StorageCategory = "STORAGE"
	MetricsCategory = "METRICS"
	AlertCategory   = "ALERTS"
)
