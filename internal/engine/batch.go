package engine

// Volume-based caps on rows per insert batch, on top of the engine's
// bound-parameter ceiling.
const (
	smallVolumeBatchCap = 5000
	largeVolumeBatchCap = 10000
	largeVolumeRows     = 50000
)

// RowsPerBatch returns the insert batch size for a table with cols columns,
// guaranteeing rows*cols never exceeds maxParams. Wide rows can force the
// batch down to a single row.
func RowsPerBatch(totalRows, cols, maxParams int) int {
	if cols <= 0 {
		return 1
	}

	batch := maxParams / cols
	if batch < 1 {
		batch = 1
	}

	limit := smallVolumeBatchCap
	if totalRows > largeVolumeRows {
		limit = largeVolumeBatchCap
	}
	if batch > limit {
		batch = limit
	}
	return batch
}
