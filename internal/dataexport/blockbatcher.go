package dataexport

import (
	"context"
	"database/sql"

	"github.com/setavenger/blindbit-explorer/internal/types"
)

// BlockBatcher writes blocks into the export database inside one sql transaction.
type BlockBatcher struct {
	tx        *sql.Tx
	insHeader *sql.Stmt
	insTx     *sql.Stmt
	insOut    *sql.Stmt
	insIn     *sql.Stmt
}

// BeginBatch opens the transaction and prepares the statements once.
func BeginBatch(ctx context.Context, db *sql.DB) (*BlockBatcher, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	// Defer FK checks to COMMIT; resets automatically at COMMIT/ROLLBACK.
	if _, err = tx.ExecContext(ctx, "PRAGMA defer_foreign_keys=ON"); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	b := &BlockBatcher{tx: tx}
	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&b.insHeader, "INSERT OR REPLACE INTO headers(block_height,block_hash,prev_hash,timestamp) VALUES (?,?,?,?)"},
		{&b.insTx, "INSERT OR REPLACE INTO transactions(block_height,position,txid) VALUES (?,?,?)"},
		{&b.insOut, "INSERT OR REPLACE INTO outputs(block_height,position,vout,amount,script,address) VALUES (?,?,?,?,?,?)"},
		{&b.insIn, "INSERT OR REPLACE INTO inputs(block_height,position,idx,spent_height,spent_position,spent_vout,resolution) VALUES (?,?,?,?,?,?,?)"},
	}
	for _, s := range stmts {
		*s.dst, err = tx.PrepareContext(ctx, s.query)
		if err != nil {
			_ = b.Rollback()
			return nil, err
		}
	}
	return b, nil
}

func (b *BlockBatcher) InsertBlock(ctx context.Context, header types.BlockHeader, txs []types.Transaction) error {
	_, err := b.insHeader.ExecContext(ctx,
		int64(header.Height), header.Hash[:], header.PrevHash[:], int64(header.Timestamp),
	)
	if err != nil {
		return err
	}

	for _, t := range txs {
		if _, err = b.insTx.ExecContext(ctx, int64(t.ID.Height), int64(t.ID.Index), t.Hash[:]); err != nil {
			return err
		}
		for _, o := range t.Utxos {
			var address any
			if len(o.Address) > 0 {
				address = string(o.Address)
			}
			script := o.ScriptHash
			if script == nil {
				script = []byte{}
			}
			_, err = b.insOut.ExecContext(ctx,
				int64(t.ID.Height), int64(t.ID.Index), int64(o.ID.Index), int64(o.Amount), script, address,
			)
			if err != nil {
				return err
			}
		}
		for _, in := range t.Inputs {
			_, err = b.insIn.ExecContext(ctx,
				int64(t.ID.Height), int64(t.ID.Index), int64(in.ID.Index),
				int64(in.Spent.Tx.Height), int64(in.Spent.Tx.Index), int64(in.Spent.Index),
				in.Resolution.String(),
			)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *BlockBatcher) closeStmts() {
	for _, s := range []*sql.Stmt{b.insHeader, b.insTx, b.insOut, b.insIn} {
		if s != nil {
			_ = s.Close()
		}
	}
}

func (b *BlockBatcher) Commit() error {
	defer b.closeStmts()
	return b.tx.Commit()
}

func (b *BlockBatcher) Rollback() error {
	defer b.closeStmts()
	return b.tx.Rollback()
}
