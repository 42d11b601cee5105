package wire

import "testing"

func TestNullThinTxIsNull(t *testing.T) {
	if !NullThinTx().IsNull() {
		t.Fatalf("NullThinTx should report IsNull")
	}
	if ThinTxFromCheap(1).IsNull() {
		t.Fatalf("a populated ThinTx must not report IsNull")
	}
}

func TestThinTxFromFullDerivesCheapEagerly(t *testing.T) {
	full := Hash{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09}
	tx := ThinTxFromFull(full)
	if !tx.HasCheap() {
		t.Fatalf("ThinTxFromFull must eagerly populate the cheap facet")
	}
	if tx.Cheap() != cheapHashOf(full) {
		t.Fatalf("cheap hash mismatch: got %#x, want %#x", tx.Cheap(), cheapHashOf(full))
	}
}

func TestThinTxEqualsAcrossFacets(t *testing.T) {
	full := Hash{0xaa, 0xbb, 0xcc, 0xdd}
	salt := ShortIDSalt{K0: 11, K1: 22}

	full1 := ThinTxFromFull(full)
	short1 := ThinTxFromShortID(ShortID(salt, full), salt)
	cheap1 := ThinTxFromCheap(cheapHashOf(full))

	if !full1.Equals(short1) {
		t.Fatalf("full identity should equal short-id identity under shared salt")
	}
	if !short1.Equals(full1) {
		t.Fatalf("Equals must be symmetric")
	}
	if !full1.Equals(cheap1) {
		t.Fatalf("full identity should equal cheap-hash identity")
	}
}

func TestThinTxEqualsRejectsDifferentSalts(t *testing.T) {
	salt1 := ShortIDSalt{K0: 1, K1: 2}
	salt2 := ShortIDSalt{K0: 3, K1: 4}
	full := Hash{0x01}

	a := ThinTxFromShortID(ShortID(salt1, full), salt1)
	b := ThinTxFromShortID(ShortID(salt2, full), salt2)

	// Neither side carries a full hash, so there is nothing to recompute
	// against the other's salt; a fuzzy comparison has no basis to agree.
	if a.Equals(b) {
		t.Fatalf("short-ids under different salts with no full hash must not compare equal")
	}
}

func TestThinTxMergeAccumulatesFacets(t *testing.T) {
	full := Hash{0x01, 0x02}
	salt := ShortIDSalt{K0: 5, K1: 6}

	a := ThinTxFromShortID(ShortID(salt, full), salt)
	b := ThinTxFromFull(full)

	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("unexpected merge error: %v", err)
	}
	if !merged.HasFull() || merged.Full() != full {
		t.Fatalf("merged identity should carry the full hash")
	}
	if !merged.HasShortID() {
		t.Fatalf("merged identity should retain the short-id facet")
	}
}

func TestThinTxMergeDetectsContradiction(t *testing.T) {
	a := ThinTxFromFull(Hash{0x01})
	b := ThinTxFromFull(Hash{0x02})

	if _, err := a.Merge(b); err == nil {
		t.Fatalf("expected an error merging two different full hashes")
	}
}

func TestThinTxShortIDUnderSaltDerivesFromFull(t *testing.T) {
	full := Hash{0x09, 0x08, 0x07}
	tx := ThinTxFromFull(full)
	salt := ShortIDSalt{K0: 100, K1: 200}

	id, ok := tx.ShortIDUnderSalt(salt)
	if !ok {
		t.Fatalf("expected short-id derivation to succeed from a full hash")
	}
	if id != ShortID(salt, full) {
		t.Fatalf("derived short-id mismatch")
	}
}

func TestThinTxShortIDUnderSaltFailsWithoutFullOrMatchingShort(t *testing.T) {
	tx := ThinTxFromCheap(123)
	if _, ok := tx.ShortIDUnderSalt(ShortIDSalt{K0: 1, K1: 2}); ok {
		t.Fatalf("a cheap-only identity cannot produce a short-id")
	}
}
