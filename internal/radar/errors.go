package radar

import "errors"

// Sentinel errors for the acquisition boundary. Timeouts and faults are
// recoverable: the pipeline skips the frame and carries on. Sensor loss
// is fatal and tears the pipeline down.
var (
	// ErrAcquisitionTimeout is returned when no frame arrived within the
	// configured read timeout.
	ErrAcquisitionTimeout = errors.New("frame read timed out")

	// ErrAcquisitionFault is returned for a frame that arrived but failed
	// validation (bad magic, bad CRC, truncated payload, stale sequence).
	ErrAcquisitionFault = errors.New("corrupt or invalid frame")

	// ErrSensorLost is returned after too many consecutive timeouts.
	ErrSensorLost = errors.New("sensor lost")
)
