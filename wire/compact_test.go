package wire

import (
	"bytes"
	"testing"
)

// testTx builds a minimal valid transaction, varying seq so distinct calls
// produce distinct hashes.
func testTx(seq uint32) *MsgTx {
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Index: seq}, Sequence: seq})
	tx.AddTxOut(&TxOut{Value: int64(seq), PkScript: []byte{0x51}})
	return tx
}

func coinbaseTx() *MsgTx {
	tx := NewMsgTx(TxVersion)
	tx.AddTxIn(&TxIn{PreviousOutPoint: OutPoint{Index: 0xffffffff}})
	tx.AddTxOut(&TxOut{Value: 5000000000, PkScript: []byte{0x51}})
	return tx
}

func testBlock(n int) *MsgBlock {
	header := sampleHeader()
	block := NewMsgBlock(&header)
	block.AddTransaction(coinbaseTx())
	for i := 0; i < n; i++ {
		block.AddTransaction(testTx(uint32(i + 1)))
	}
	block.Header.MerkleRoot = block.ComputeMerkleRoot()
	return block
}

func TestNewCompactBlockPrefillsCoinbaseOnly(t *testing.T) {
	block := testBlock(3)
	cb := NewCompactBlock(block, 99, nil)

	if len(cb.PrefilledTxs) != 1 || cb.PrefilledTxs[0].Index != 0 {
		t.Fatalf("expected only the coinbase prefilled, got %+v", cb.PrefilledTxs)
	}
	if len(cb.ShortIDs) != 3 {
		t.Fatalf("expected 3 short-ids, got %d", len(cb.ShortIDs))
	}
	if cb.BlockTxCount() != 4 {
		t.Fatalf("expected block tx count 4, got %d", cb.BlockTxCount())
	}
}

func TestCompactBlockValidatePassesWellFormed(t *testing.T) {
	block := testBlock(2)
	cb := NewCompactBlock(block, 1, nil)
	if err := cb.Validate(32 * 1024 * 1024); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestCompactBlockValidateRejectsEmpty(t *testing.T) {
	cb := &CompactBlock{Header: testBlock(0).Header}
	if err := cb.Validate(32 * 1024 * 1024); err == nil {
		t.Fatalf("expected validation error for a compact block with no transactions")
	}
}

func TestCompactBlockValidateRejectsNonIncreasingPrefilled(t *testing.T) {
	block := testBlock(2)
	cb := NewCompactBlock(block, 1, nil)
	cb.PrefilledTxs = append(cb.PrefilledTxs, PrefilledTransaction{Index: 0, Tx: coinbaseTx()})
	if err := cb.Validate(32 * 1024 * 1024); err == nil {
		t.Fatalf("expected validation error for non-increasing prefilled indices")
	}
}

func TestCompactBlockEncodeDecodeRoundTrip(t *testing.T) {
	block := testBlock(4)
	cb := NewCompactBlock(block, 123, nil)

	var buf bytes.Buffer
	if err := cb.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	got, err := DecodeCompactBlock(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if got.Nonce != cb.Nonce {
		t.Fatalf("nonce mismatch: got %d, want %d", got.Nonce, cb.Nonce)
	}
	if len(got.ShortIDs) != len(cb.ShortIDs) {
		t.Fatalf("short-id count mismatch: got %d, want %d", len(got.ShortIDs), len(cb.ShortIDs))
	}
	for i := range cb.ShortIDs {
		if got.ShortIDs[i] != cb.ShortIDs[i] {
			t.Fatalf("short-id %d mismatch: got %#x, want %#x", i, got.ShortIDs[i], cb.ShortIDs[i])
		}
	}
	if len(got.PrefilledTxs) != 1 || got.PrefilledTxs[0].Index != 0 {
		t.Fatalf("prefilled tx round trip mismatch: %+v", got.PrefilledTxs)
	}
}

func TestCompactBlockReconstructStubMarksMissing(t *testing.T) {
	block := testBlock(3)
	cb := NewCompactBlock(block, 7, nil)
	salt := cb.Salt()

	known := block.Transactions[1] // first non-coinbase, non-prefilled tx
	knownID := ShortID(salt, known.TxHash())

	finder := func(shortid uint64) (*MsgTx, bool) {
		if shortid == knownID {
			return known, true
		}
		return nil, false
	}

	wanted, missing := cb.ReconstructStub(finder)
	if len(wanted) != cb.BlockTxCount() {
		t.Fatalf("wanted length mismatch: got %d, want %d", len(wanted), cb.BlockTxCount())
	}
	if len(missing) != 2 {
		t.Fatalf("expected 2 missing slots (the two unknown short-ids), got %d: %v", len(missing), missing)
	}
	if wanted[0].Full() != block.Transactions[0].TxHash() {
		t.Fatalf("slot 0 should carry the prefilled coinbase's full hash")
	}
}

func TestSendCmpctEncodeDecodeRoundTrip(t *testing.T) {
	m := &SendCmpct{Announce: true, Version: 2}
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeSendCmpct(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got.Announce != m.Announce || got.Version != m.Version {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
}

func TestGetBlockTxnEncodeDecodeRoundTrip(t *testing.T) {
	m := &GetBlockTxn{BlockHash: Hash{0x01, 0x02}, Indexes: []uint16{1, 3, 4, 10}}
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeGetBlockTxn(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got.Indexes) != len(m.Indexes) {
		t.Fatalf("index count mismatch: got %d, want %d", len(got.Indexes), len(m.Indexes))
	}
	for i := range m.Indexes {
		if got.Indexes[i] != m.Indexes[i] {
			t.Fatalf("index %d mismatch: got %d, want %d", i, got.Indexes[i], m.Indexes[i])
		}
	}
}
