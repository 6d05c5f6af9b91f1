package dbpebble

const (
	SizeHash       = 32
	SizeHeight     = 4
	SizeTimestamp  = 4
	SizeIndex      = 2
	SizeAmt        = 8
	SizeAddrID     = 8
	SizeResolution = 1

	SizeTxPtr   = SizeHeight + SizeIndex
	SizeUtxoPtr = SizeTxPtr + SizeIndex
)

// Prefix Keys "K"
const (
	KHeader       = 0x01
	KHeaderByHash = 0x02
	KHeaderByPrev = 0x03
	KHeaderByTime = 0x04

	KTx       = 0x05
	KTxByHash = 0x06

	KUtxo    = 0x07
	KInput   = 0x08
	KSpentBy = 0x09

	/* Address dictionary */

	KAddrDict = 0x0A
	KAddrByID = 0x0B
	KAddrUtxo = 0x0C
)

// PrefixNames is used by tooling to list the key spaces.
var PrefixNames = map[byte]string{
	KHeader:       "header",
	KHeaderByHash: "header-by-hash",
	KHeaderByPrev: "header-by-prev",
	KHeaderByTime: "header-by-time",
	KTx:           "tx",
	KTxByHash:     "tx-by-hash",
	KUtxo:         "utxo",
	KInput:        "input",
	KSpentBy:      "spent-by",
	KAddrDict:     "addr-dict",
	KAddrByID:     "addr-by-id",
	KAddrUtxo:     "addr-utxo",
}
