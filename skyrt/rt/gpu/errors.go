package gpu

import "errors"

var (
	ErrMissingKernel     = errors.New("kernel not available")
	ErrMissingBinding    = errors.New("kernel has no such bind point")
	ErrTableNotAllocated = errors.New("table not allocated")
	ErrHazard            = errors.New("table read before it is written")
	ErrNotBuilt          = errors.New("sky pipeline not built")
	ErrWorkgroup         = errors.New("workgroup size does not divide the table")
)
