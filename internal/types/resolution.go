package types

// Resolution records how an input's spent pointer was obtained.
type Resolution uint8

const (
	// ResolutionResolved means Spent points at a real indexed output.
	ResolutionResolved Resolution = iota
	// ResolutionCoinbase marks the null outpoint of a coinbase input.
	ResolutionCoinbase
	// ResolutionUnresolvable means the referenced transaction or output is not indexed.
	ResolutionUnresolvable
)

func (r Resolution) String() string {
	switch r {
	case ResolutionResolved:
		return "resolved"
	case ResolutionCoinbase:
		return "coinbase"
	case ResolutionUnresolvable:
		return "unresolvable"
	default:
		return "unknown"
	}
}

func (r Resolution) Valid() bool {
	return r <= ResolutionUnresolvable
}
