package job

// Reason explains why a job ended in Failed, Cancelled or Rejected.
type Reason string

const (
	ReasonNone Reason = ""

	// Rejected after probing.
	ReasonSourceTooLargeNoEstimate Reason = "source_too_large_no_estimate"
	ReasonEstimateTooLarge         Reason = "estimate_too_large"

	// Failed.
	ReasonProbeUnreachable Reason = "probe_unreachable"
	ReasonProbeUnsupported Reason = "probe_unsupported"
	ReasonProbeTimeout     Reason = "probe_timeout"
	ReasonDownloadFailed   Reason = "download_failed"
	ReasonSourceTooLarge   Reason = "source_too_large"
	ReasonEncodeFailed     Reason = "encode_failed"
	ReasonOutputTooLarge   Reason = "output_too_large"
	ReasonUploadFailed     Reason = "upload_failed"
	ReasonTimeout          Reason = "timeout"
	ReasonInternal         Reason = "internal"

	// Cancelled.
	ReasonDeclined Reason = "declined"
	ReasonExpired  Reason = "expired"
	ReasonUserStop Reason = "user_stop"
	ReasonShutdown Reason = "shutdown"
)

// Retryable reports whether resubmitting the same URL could succeed.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonProbeUnsupported, ReasonSourceTooLargeNoEstimate, ReasonEstimateTooLarge:
		return false
	default:
		return true
	}
}
