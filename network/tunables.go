package network

import "time"

// Protocol tunables, §6.3.
const (
	MaxBlocksInTransitPerPeer = 16
	BlockDownloadWindow       = 1024
	MaxHeadersResults         = 2000
	MaxBlocksToAnnounce       = 8
	TimeoutInterval           = 20 * 60 * time.Second
	PingInterval              = 2 * 60 * time.Second
	FeelerInterval            = 120 * time.Second
	MaxInvSize                = 50000
	ThinMaxParallelDefault    = 3
	MaxRejectMessageLength    = 111
)
