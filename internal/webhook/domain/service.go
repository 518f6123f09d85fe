package domain

import "context"

const (
	ModeSequential = "sequential"
	ModeParallel   = "parallel"
)

// Dispatcher delivers notifications for matched shows. Unmatched items are skipped;
// results are returned in input order for the items that were attempted.
type Dispatcher interface {
	Dispatch(ctx context.Context, report ReportRef, items []Item, mode string) []DeliveryResult
}
