package dataexport

import (
	"encoding/csv"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"

	"github.com/setavenger/blindbit-explorer/internal/database"
	"github.com/setavenger/blindbit-explorer/internal/logging"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

func writeToCSV(path string, records [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	logging.L.Info().Msgf("Writing to %s", path)
	file, err := os.Create(path)
	if err != nil {
		logging.L.Err(err).Str("path", path).Msg("failed creating file")
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err = writer.WriteAll(records); err != nil {
		return err
	}
	return file.Sync()
}

/* Headers */

func ExportHeadersCSV(store database.BlockReader, path string) error {
	first, last, err := heightRange(store)
	if err != nil {
		return err
	}

	var headers []types.BlockHeader
	if first != nil {
		for h := uint64(first.Height); h <= uint64(last.Height); h++ {
			header, err := store.HeaderByHeight(types.BlockHeight(h))
			if err != nil {
				logging.L.Err(err).Uint64("height", h).Msg("error fetching header")
				return err
			}
			headers = append(headers, *header)
		}
	}
	return writeToCSV(path, convertHeadersToRecords(headers))
}

func convertHeadersToRecords(data []types.BlockHeader) [][]string {
	records := [][]string{{
		"blockHeight",
		"blockHash",
		"prevHash",
		"timestamp",
	}}
	for _, h := range data {
		records = append(records, []string{
			strconv.FormatUint(uint64(h.Height), 10),
			h.Hash.String(),
			h.PrevHash.String(),
			strconv.FormatUint(uint64(h.Timestamp), 10),
		})
	}
	return records
}

/* UTXOs */

// ExportAddressUtxosCSV writes every output ever paid to address.
func ExportAddressUtxosCSV(store database.BlockReader, address, path string) error {
	utxos, err := store.UtxosByAddress(address)
	if err != nil {
		logging.L.Err(err).Str("address", address).Msg("error fetching utxos")
		return err
	}
	records, err := convertUtxosToRecords(store, utxos)
	if err != nil {
		return err
	}
	return writeToCSV(path, records)
}

func convertUtxosToRecords(store database.BlockReader, utxos []types.Utxo) ([][]string, error) {
	records := [][]string{{
		"pointer",
		"value",
		"scriptPubKey",
		"spentBy",
	}}
	for _, u := range utxos {
		spentBy, err := store.SpentBy(u.ID)
		if err != nil {
			logging.L.Err(err).Str("pointer", u.ID.String()).Msg("error fetching spenders")
			return nil, err
		}
		var spender string
		if len(spentBy) > 0 {
			spender = spentBy[0].String()
		}
		records = append(records, []string{
			u.ID.String(),
			strconv.FormatUint(u.Amount, 10),
			hex.EncodeToString(u.ScriptHash),
			spender,
		})
	}
	return records, nil
}
