package config

import "time"

// Server defaults
const (
	DefaultPort        = "8080"
	DefaultDataDir     = "./data/tinyseg"
	DefaultMaxMemoryMB = 48
)

// Clustering defaults
//
// Seed and restarts mirror the training setup the segmentation models were
// validated with (fixed seed, 10 restarts). Changing the seed changes cluster
// ids across retrains, so keep it stable.
const (
	KMeansSeed     = 42
	KMeansRestarts = 10
	KMeansMaxIter  = 300
	KMeansTol      = 1e-4

	DefaultMinClusters = 2
	DefaultMaxClusters = 10

	// FourClusterBias is the fraction of the best knee distance within which
	// k=4 is preferred. Four-segment taxonomies are the easiest to act on,
	// so we take k=4 whenever it is nearly as well supported by the data.
	FourClusterBias = 0.85

	FallbackClusters = 4
)

// Cleaning
const (
	// CancelPrefix marks cancelled invoices (retail convention: invoice ids
	// starting with "C" are cancellations/returns).
	CancelPrefix = "C"
)

// Analytics defaults
const (
	DefaultTopProducts = 5
)

// Upload limits and timeouts
const (
	MaxUploadBytes  = 256 << 20 // 256 MB CSV cap
	SegmentTimeout  = 5 * time.Minute
	BusinessTimeout = 5 * time.Second
)

// WebSocket configuration
const (
	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSBroadcastBuffer = 256
	WSChannelBuffer   = 10
	WSWriteDeadline   = 10 * time.Second
	WSReadDeadline    = 60 * time.Second
	WSPingInterval    = 30 * time.Second
)

// Badger GC
const (
	BadgerGCInterval = 10 * time.Minute
)
