package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/setavenger/blindbit-explorer/internal/database/dbpebble"
	"github.com/setavenger/blindbit-explorer/internal/types"
)

// DatabaseExplorer provides methods to explore the pebble database
type DatabaseExplorer struct {
	store *dbpebble.Store
}

func NewDatabaseExplorer(dbPath string) (*DatabaseExplorer, error) {
	store, err := dbpebble.Open(dbPath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &DatabaseExplorer{store: store}, nil
}

func (de *DatabaseExplorer) Close() error {
	return de.store.Close()
}

// prefixByName maps the names of dbpebble.PrefixNames back to their prefix byte.
func prefixByName(name string) (byte, bool) {
	for prefix, n := range dbpebble.PrefixNames {
		if n == name {
			return prefix, true
		}
	}
	return 0, false
}

func sortedPrefixes() []byte {
	prefixes := make([]byte, 0, len(dbpebble.PrefixNames))
	for prefix := range dbpebble.PrefixNames {
		prefixes = append(prefixes, prefix)
	}
	slices.Sort(prefixes)
	return prefixes
}

// PrintKeyTypeSummary prints a summary of key types in the database
func (de *DatabaseExplorer) PrintKeyTypeSummary() error {
	fmt.Println("Database Key Type Summary:")
	fmt.Println("=========================")

	totalKeys := 0
	for _, prefix := range sortedPrefixes() {
		count, err := de.store.CountKeys(prefix)
		if err != nil {
			return err
		}
		fmt.Printf("%-25s: %d keys\n", dbpebble.PrefixNames[prefix], count)
		totalKeys += count
	}

	fmt.Printf("%-25s: %d keys\n", "TOTAL", totalKeys)
	return nil
}

// PrintDatabaseInfo prints comprehensive database information
func (de *DatabaseExplorer) PrintDatabaseInfo() error {
	fmt.Println("Blindbit Explorer Database Information")
	fmt.Println("======================================")

	first, err := de.store.FirstHeader()
	if err != nil {
		return err
	}
	last, err := de.store.LastHeader()
	if err != nil {
		return err
	}
	if first == nil {
		fmt.Println("Height Range: empty")
	} else {
		fmt.Printf("Height Range: %d - %d (%d blocks)\n", first.Height, last.Height, last.Height-first.Height+1)
		fmt.Printf("Best Block:   %s\n", last.Hash)
	}

	fmt.Println()

	if err := de.PrintKeyTypeSummary(); err != nil {
		return fmt.Errorf("failed to print key type summary: %w", err)
	}

	fmt.Println()

	metrics := de.store.DB.Metrics()
	fmt.Println("Database Metrics:")
	fmt.Printf("  Range Key Sets: %d\n", metrics.Keys.RangeKeySetsCount)
	fmt.Printf("  Tombstones: %d\n", metrics.Keys.TombstoneCount)
	fmt.Printf("  Memtable Size: %d bytes\n", metrics.MemTable.Size)
	fmt.Printf("  Block Cache Size: %d bytes\n", metrics.BlockCache.Size)
	fmt.Printf("  WAL Files: %d\n", metrics.WAL.Files)
	fmt.Printf("  WAL Size: %d bytes\n", metrics.WAL.Size)

	return nil
}

func printHeader(h types.BlockHeader) {
	fmt.Printf("Height:    %d\n", h.Height)
	fmt.Printf("Hash:      %s\n", h.Hash)
	fmt.Printf("Prev:      %s\n", h.PrevHash)
	fmt.Printf("Timestamp: %d (%s)\n", h.Timestamp, h.Time().UTC())
}

func (de *DatabaseExplorer) PrintHeaderByHeight(height uint32) error {
	header, err := de.store.HeaderByHeight(types.BlockHeight(height))
	if err != nil {
		return err
	}
	printHeader(*header)
	return nil
}

func (de *DatabaseExplorer) PrintHeadersByHash(hash chainhash.Hash) error {
	headers, err := de.store.HeadersByHash(hash)
	if err != nil {
		return err
	}
	if len(headers) == 0 {
		fmt.Println("no header found")
	}
	for i, h := range headers {
		if i > 0 {
			fmt.Println()
		}
		printHeader(h)
	}
	return nil
}

func (de *DatabaseExplorer) PrintTransaction(txid chainhash.Hash) error {
	ptrs, err := de.store.TxPointersByHash(txid)
	if err != nil {
		return err
	}
	if len(ptrs) == 0 {
		fmt.Println("no transaction found")
	}
	for _, ptr := range ptrs {
		tx, err := de.store.Transaction(ptr)
		if err != nil {
			return err
		}
		fmt.Printf("Transaction %s at %s\n", tx.Hash, tx.ID)
		for _, in := range tx.Inputs {
			fmt.Printf("  in  %s spends %s (%s)\n", in.ID, in.Spent, in.Resolution)
		}
		for _, out := range tx.Utxos {
			fmt.Printf("  out %s %d sats %s\n", out.ID, out.Amount, out.Address)
		}
	}
	return nil
}

var errDumpLimit = errors.New("dump limit reached")

// DumpKeys prints up to limit raw entries of one key space.
func (de *DatabaseExplorer) DumpKeys(prefix byte, limit int) error {
	n := 0
	err := de.store.IterateKeys(prefix, func(k, v []byte) error {
		if limit > 0 && n >= limit {
			return errDumpLimit
		}
		fmt.Printf("%s => %s\n", hex.EncodeToString(k), hex.EncodeToString(v))
		n++
		return nil
	})
	if err != nil && !errors.Is(err, errDumpLimit) {
		return err
	}
	fmt.Printf("%d entries\n", n)
	return nil
}
