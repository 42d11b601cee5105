package network

// Message type strings for the thin-block wire messages the teacher's
// P2PMessage envelope did not originally carry: xthin's own request/reply
// pair. cmpctblock/getblocktxn/blocktxn/sendcmpct already had constants
// (see sync.go); these extend the set for the xthin path.
const (
	MsgTypeGetXThin    = "get_xthin"
	MsgTypeXThinBlock  = "xthinblock"
	MsgTypeGetXBlockTx = "get_xblocktx"
	MsgTypeXBlockTx    = "xblocktx"

	MsgTypeFilterLoad  = "filterload"
	MsgTypeFilterAdd   = "filteradd"
	MsgTypeFilterClear = "filterclear"
	MsgTypeMerkleBlock = "merkleblock"
)
