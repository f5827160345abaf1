package calc

import "errors"

// Run-level errors abort a run with success=false. Per-symbol errors
// (ErrInsufficientHistory, ErrTargetMissing) are collected and never abort.
var (
	ErrUniverseEmpty       = errors.New("no active securities found")
	ErrHistoryUnavailable  = errors.New("no OHLCV data found")
	ErrInsufficientHistory = errors.New("insufficient history")
	ErrTargetMissing       = errors.New("no data for target date")
	ErrPersistence         = errors.New("persist metrics")
	ErrNoRecords           = errors.New("no records calculated")

	// ErrRunInProgress is returned by TryRun while another run holds the
	// orchestrator.
	ErrRunInProgress = errors.New("a calculation run is already in progress")
)
