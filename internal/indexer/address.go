package indexer

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// deriveAddress returns the encoded address of a locking script or nil.
// Pay-to-pubkey outputs are shown as the P2PKH address of their key.
func deriveAddress(pkScript []byte, params *chaincfg.Params) []byte {
	class, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, params)
	if err == nil && len(addrs) == 1 && class != txscript.PubKeyTy {
		return []byte(addrs[0].EncodeAddress())
	}

	if pubKey := extractPayToPubKey(pkScript); pubKey != nil {
		addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubKey), params)
		if err == nil {
			return []byte(addr.EncodeAddress())
		}
	}
	return nil
}

// extractPayToPubKey returns the key of a <push key> OP_CHECKSIG script if the
// key parses as a secp256k1 point.
func extractPayToPubKey(pkScript []byte) []byte {
	var key []byte
	switch {
	case len(pkScript) == 35 && pkScript[0] == txscript.OP_DATA_33 && pkScript[34] == txscript.OP_CHECKSIG:
		key = pkScript[1:34]
	case len(pkScript) == 67 && pkScript[0] == txscript.OP_DATA_65 && pkScript[66] == txscript.OP_CHECKSIG:
		key = pkScript[1:66]
	default:
		return nil
	}
	if _, err := btcec.ParsePubKey(key); err != nil {
		return nil
	}
	return key
}
