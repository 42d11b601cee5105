package wire

// merkleParent computes the double-sha256 of two concatenated hashes.
func merkleParent(l, r Hash) Hash {
	buf := make([]byte, 0, HashSize*2)
	buf = append(buf, l[:]...)
	buf = append(buf, r[:]...)
	return DoubleHashH(buf)
}

// merkleParentLevel folds one level of a merkle tree, duplicating the final
// hash when the level has an odd count.
func merkleParentLevel(level []Hash) []Hash {
	if len(level)%2 != 0 {
		level = append(level, level[len(level)-1])
	}
	parents := make([]Hash, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		parents = append(parents, merkleParent(level[i], level[i+1]))
	}
	return parents
}

// MerkleRoot folds a leaf-hash list up to its root. Returns the zero hash
// for an empty list.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := leaves
	for len(level) > 1 {
		level = merkleParentLevel(level)
	}
	return level[0]
}

// TxMerkleRoot hashes each transaction and folds the result into a root,
// matching the order the transactions appear in the block.
func TxMerkleRoot(txs []*MsgTx) Hash {
	if len(txs) == 0 {
		return Hash{}
	}
	leaves := make([]Hash, len(txs))
	for i, tx := range txs {
		leaves[i] = tx.TxHash()
	}
	return MerkleRoot(leaves)
}
