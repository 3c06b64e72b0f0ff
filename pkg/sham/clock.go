package sham

import "time"

// nowMillis returns a monotonic millisecond timestamp suitable for RTO
// bookkeeping. time.Time already carries a monotonic reading on every
// platform Go supports, and time.Since uses it, so the value is measured
// from process start and is wall-clock-adjustment-safe.
func nowMillis() int64 {
	return time.Since(clockEpoch).Milliseconds()
}

var clockEpoch = time.Now()

// isTimeout reports whether at least timeoutMs milliseconds have elapsed
// since start.
func isTimeout(start int64, timeoutMs int64) bool {
	return nowMillis()-start >= timeoutMs
}
