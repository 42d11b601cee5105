package network

import (
	"testing"
	"time"

	"obsidian-core/wire"
)

func tbHeader() wire.BlockHeader {
	return wire.BlockHeader{
		Version:    1,
		PrevBlock:  wire.Hash{0x01},
		MerkleRoot: wire.Hash{0x02},
		Timestamp:  time.Unix(1700000000, 0).UTC(),
		Bits:       0x1d00ffff,
		Nonce:      7,
	}
}

func tbTx(seq uint32) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: seq}, Sequence: seq})
	tx.AddTxOut(&wire.TxOut{Value: int64(seq), PkScript: []byte{0x51}})
	return tx
}

func tbCoinbase() *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: 0xffffffff}})
	tx.AddTxOut(&wire.TxOut{Value: 5000000000, PkScript: []byte{0x51}})
	return tx
}

// buildWantedBlock returns a finished block plus the wanted ThinTx slice a
// builder would be constructed with for it (coinbase full, rest short-id
// under a fixed salt), so tests can exercise fill order and completion.
func buildWantedBlock(n int) (*wire.MsgBlock, []wire.ThinTx, wire.ShortIDSalt) {
	header := tbHeader()
	block := &wire.MsgBlock{Header: header}
	block.AddTransaction(tbCoinbase())
	for i := 0; i < n; i++ {
		block.AddTransaction(tbTx(uint32(i + 1)))
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()

	salt := wire.DeriveShortIDSalt(&block.Header, 55)
	wanted := make([]wire.ThinTx, len(block.Transactions))
	wanted[0] = wire.ThinTxFromFull(block.Transactions[0].TxHash())
	for i := 1; i < len(block.Transactions); i++ {
		full := block.Transactions[i].TxHash()
		wanted[i] = wire.ThinTxFromShortID(wire.ShortID(salt, full), salt)
	}
	return block, wanted, salt
}

func TestThinBlockBuilderFillsFromInitialFinder(t *testing.T) {
	block, wanted, _ := buildWantedBlock(2)

	finder := func(w wire.ThinTx) (*wire.MsgTx, bool) {
		if w.HasFull() {
			return block.Transactions[0], true
		}
		return nil, false
	}

	b := NewThinBlockBuilder(block.Header, wanted, finder)
	if b.IsComplete() {
		t.Fatalf("builder should not be complete before non-coinbase slots are filled")
	}
	if len(b.Missing()) != 2 {
		t.Fatalf("expected 2 missing slots, got %d", len(b.Missing()))
	}
}

func TestThinBlockBuilderAddTransactionFillsBySlotAndFinishes(t *testing.T) {
	block, wanted, _ := buildWantedBlock(2)
	b := NewThinBlockBuilder(block.Header, wanted, nil)

	for _, tx := range block.Transactions {
		result := b.AddTransaction(tx)
		if result != Added {
			t.Fatalf("expected Added for tx, got %v", result)
		}
	}
	if !b.IsComplete() {
		t.Fatalf("builder should be complete after every transaction was added")
	}

	got, err := b.Finish()
	if err != nil {
		t.Fatalf("unexpected Finish error: %v", err)
	}
	if got.BlockHash() != block.BlockHash() {
		t.Fatalf("reconstructed block hash mismatch")
	}
}

func TestThinBlockBuilderAddTransactionDuplicateAndUnwanted(t *testing.T) {
	block, wanted, _ := buildWantedBlock(1)
	b := NewThinBlockBuilder(block.Header, wanted, nil)

	if r := b.AddTransaction(block.Transactions[0]); r != Added {
		t.Fatalf("expected Added, got %v", r)
	}
	if r := b.AddTransaction(block.Transactions[0]); r != Duplicate {
		t.Fatalf("expected Duplicate for a re-added tx, got %v", r)
	}

	foreign := tbTx(999)
	if r := b.AddTransaction(foreign); r != Unwanted {
		t.Fatalf("expected Unwanted for a transaction that matches no slot, got %v", r)
	}
}

func TestThinBlockBuilderFinishRejectsIncompleteOrBadMerkleRoot(t *testing.T) {
	block, wanted, _ := buildWantedBlock(1)
	b := NewThinBlockBuilder(block.Header, wanted, nil)

	if _, err := b.Finish(); err == nil {
		t.Fatalf("expected Finish to fail with empty slots")
	}

	for _, tx := range block.Transactions {
		b.AddTransaction(tx)
	}
	b.header.MerkleRoot = wire.Hash{0xff} // corrupt the target root
	if _, err := b.Finish(); err == nil {
		t.Fatalf("expected Finish to reject a mismatched merkle root")
	}
}

func TestThinBlockBuilderReplaceWantedTxMergesFacets(t *testing.T) {
	block, wanted, salt := buildWantedBlock(1)
	b := NewThinBlockBuilder(block.Header, wanted, nil)

	// A second peer's stub carries full hashes where the first only had
	// short-ids; ReplaceWantedTx should merge rather than overwrite.
	secondStub := make([]wire.ThinTx, len(wanted))
	secondStub[0] = wire.ThinTxFromFull(block.Transactions[0].TxHash())
	secondStub[1] = wire.ThinTxFromFull(block.Transactions[1].TxHash())

	if err := b.ReplaceWantedTx(secondStub); err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}

	// The merged slot keeps its short-id and now also carries the full
	// hash, so the transaction still resolves into that slot.
	if r := b.AddTransaction(block.Transactions[1]); r != Added {
		t.Fatalf("expected Added after merge picked up the full hash, got %v", r)
	}
	_ = salt
}

func TestThinBlockBuilderReplaceWantedTxRejectsLengthMismatch(t *testing.T) {
	block, wanted, _ := buildWantedBlock(1)
	b := NewThinBlockBuilder(block.Header, wanted, nil)

	if err := b.ReplaceWantedTx(wanted[:0]); err == nil {
		t.Fatalf("expected a length-mismatch error")
	}
}
