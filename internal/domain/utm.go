package domain

// UtmStat accumulates per-campaign counters. Rows are created lazily on first
// reference; counters only ever grow.
type UtmStat struct {
	Keyword string
	Starts  int64
	Buys    int64
	Amount  int64 // sum of approved order amounts, minor units
}
