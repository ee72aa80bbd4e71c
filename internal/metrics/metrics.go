// Package metrics provides Prometheus metrics for the keychain daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesTotal counts router messages by type.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keychain",
			Name:      "messages_total",
			Help:      "Total number of messages handled by the background router",
		},
		[]string{"type"},
	)

	// DroppedSendersTotal counts messages dropped because the sender was not
	// the extension's own messaging context.
	DroppedSendersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "keychain",
			Name:      "dropped_senders_total",
			Help:      "Messages silently dropped due to unauthenticated senders",
		},
	)

	// ApprovalsTotal counts approval outcomes.
	ApprovalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keychain",
			Name:      "approvals_total",
			Help:      "Approval decisions by outcome",
		},
		[]string{"outcome"}, // "approved", "rejected", "timeout"
	)

	// PendingRequests tracks the number of requests awaiting approval.
	PendingRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keychain",
			Name:      "pending_requests",
			Help:      "Requests currently awaiting human approval",
		},
	)

	// WalletUnlocked is 1 while the wallet is unlocked.
	WalletUnlocked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keychain",
			Name:      "wallet_unlocked",
			Help:      "Whether the wallet is currently unlocked (0 or 1)",
		},
	)

	// ConnectedSites tracks the size of the connection allowlist.
	ConnectedSites = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "keychain",
			Name:      "connected_sites",
			Help:      "Number of origins in the connection allowlist",
		},
	)

	// KDFOperationsTotal counts key derivation operations.
	KDFOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keychain",
			Name:      "kdf_operations_total",
			Help:      "Password key-derivation operations",
		},
		[]string{"operation"}, // "encrypt" or "decrypt"
	)

	// HTTPRequestsTotal counts admin API requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "keychain",
			Name:      "http_requests_total",
			Help:      "Total number of admin HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks admin API request duration.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "keychain",
			Name:      "http_request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
