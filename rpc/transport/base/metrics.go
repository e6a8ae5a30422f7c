package base

import "github.com/VictoriaMetrics/metrics"

var (
	framesSent         = metrics.NewCounter(`twinkle_frames_sent_total`)
	framesReceived     = metrics.NewCounter(`twinkle_frames_received_total`)
	framesTruncated    = metrics.NewCounter(`twinkle_frames_discarded_total{reason="truncated"}`)
	framesMalformed    = metrics.NewCounter(`twinkle_frames_discarded_total{reason="malformed"}`)
	responsesUnmatched = metrics.NewCounter(`twinkle_responses_unmatched_total`)
	transientErrors    = metrics.NewCounter(`twinkle_socket_transient_errors_total`)
	sendErrors         = metrics.NewCounter(`twinkle_socket_send_errors_total`)
	recvErrors         = metrics.NewCounter(`twinkle_socket_recv_errors_total`)
)

func init() {
	metrics.NewGauge(`twinkle_transports_running`, func() float64 {
		return float64(runningTransports.Load())
	})
}
