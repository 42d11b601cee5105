package wire

import (
	"bytes"
	"testing"
)

func TestNewXThinBlockMarksCoinbaseAndUnfilteredAsMissing(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(xb.TxHashes) != 3 {
		t.Fatalf("expected 3 cheap hashes, got %d", len(xb.TxHashes))
	}
	// With no filter, every transaction is considered missing.
	if len(xb.Missing) != 3 {
		t.Fatalf("expected all transactions missing with a nil filter, got %d", len(xb.Missing))
	}
}

func TestNewXThinBlockOmitsFilterMatchedNonCoinbase(t *testing.T) {
	block := testBlock(2)
	filter := NewBloomFilter(10, 0.001, 5, 0)
	matched := block.Transactions[1].TxHash()
	filter.Add(matched[:])

	xb, err := NewXThinBlock(block, filter, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Coinbase is always missing regardless of filter match.
	found := false
	for _, tx := range xb.Missing {
		if tx.TxHash() == block.Transactions[0].TxHash() {
			found = true
		}
	}
	if !found {
		t.Fatalf("coinbase must always be present in Missing")
	}
	for _, tx := range xb.Missing {
		if tx.TxHash() == matched {
			t.Fatalf("a filter-matched non-coinbase transaction must be omitted from Missing")
		}
	}
}

func TestNewXThinBlockAcceptsNonCollidingTransactions(t *testing.T) {
	// Genuine cheap-hash collisions require a crafted TxHash preimage and
	// aren't practical to construct in a unit test; this instead confirms
	// the collision check doesn't misfire on ordinary, distinct transactions.
	block := testBlock(5)
	if _, err := NewXThinBlock(block, nil, true); err != nil {
		t.Fatalf("unexpected collision reported for non-colliding transactions: %v", err)
	}
}

func TestXThinBlockSelfValidateRejectsEmpty(t *testing.T) {
	xb := &XThinBlock{Header: sampleHeader()}
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject a block with no tx hashes")
	}
}

func TestXThinBlockSelfValidateAcceptsWellFormed(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := xb.SelfValidate(); err != nil {
		t.Fatalf("unexpected error validating a well-formed xthin block: %v", err)
	}
}

func TestXThinBlockSelfValidateRejectsMissingCoinbase(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Drop the coinbase from Missing; a peer can't leave slot 0 unfilled.
	xb.Missing = xb.Missing[1:]
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject a block whose Missing set omits the coinbase")
	}
}

func TestXThinBlockSelfValidateRejectsEmptyMissing(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xb.Missing = nil
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject a block with an empty Missing set")
	}
}

func TestXThinBlockSelfValidateRejectsTooManyMissing(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xb.Missing = append(xb.Missing, xb.Missing[0])
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject more missing bodies than cheap hashes")
	}
}

func TestXThinBlockSelfValidateRejectsDuplicateCheapHash(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	xb.TxHashes[2] = xb.TxHashes[1]
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject a duplicate cheap hash in the hash list")
	}
}

func TestXThinBlockSelfValidateRejectsUnlistedMissingBody(t *testing.T) {
	block := testBlock(2)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	foreign := testTx(999)
	xb.Missing[len(xb.Missing)-1] = foreign
	if err := xb.SelfValidate(); err == nil {
		t.Fatalf("expected SelfValidate to reject a missing body whose cheap hash isn't in the hash list")
	}
}

func TestXThinBlockEncodeDecodeRoundTrip(t *testing.T) {
	block := testBlock(3)
	xb, err := NewXThinBlock(block, nil, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := xb.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeXThinBlock(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got.TxHashes) != len(xb.TxHashes) {
		t.Fatalf("hash count mismatch: got %d, want %d", len(got.TxHashes), len(xb.TxHashes))
	}
	for i := range xb.TxHashes {
		if got.TxHashes[i] != xb.TxHashes[i] {
			t.Fatalf("hash %d mismatch", i)
		}
	}
	if len(got.Missing) != len(xb.Missing) {
		t.Fatalf("missing count mismatch: got %d, want %d", len(got.Missing), len(xb.Missing))
	}
}

func TestNewXThinReRequestDedupsAndSorts(t *testing.T) {
	req := NewXThinReRequest(Hash{0x01}, []uint64{5, 1, 5, 3, 1})
	want := []uint64{1, 3, 5}
	if len(req.TxRequesting) != len(want) {
		t.Fatalf("expected %d deduplicated entries, got %d", len(want), len(req.TxRequesting))
	}
	for i, v := range want {
		if req.TxRequesting[i] != v {
			t.Fatalf("entry %d: got %d, want %d", i, req.TxRequesting[i], v)
		}
	}
}

func TestXThinReRequestEncodeDecodeRoundTrip(t *testing.T) {
	req := NewXThinReRequest(Hash{0x02}, []uint64{1, 2, 3})
	var buf bytes.Buffer
	if err := req.Encode(&buf); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := DecodeXThinReRequest(&buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got.TxRequesting) != 3 {
		t.Fatalf("expected 3 requested hashes, got %d", len(got.TxRequesting))
	}
}
