// Package notify delivers mini-app notifications. Two backends exist: the
// managed Farcaster service (which can fan out to every opted-in user) and a
// self-hosted path that POSTs directly to per-user client endpoints using
// stored tokens. The backend is chosen by configuration at startup.
package notify

import (
	"context"
)

// DeliveryState mirrors the mini-app notification delivery contract.
type DeliveryState string

const (
	StateSuccess   DeliveryState = "success"
	StateNoToken   DeliveryState = "no_token"
	StateRateLimit DeliveryState = "rate_limit"
	StateError     DeliveryState = "error"
)

// Notification is one message to deliver.
type Notification struct {
	Title string
	Body  string
}

// Notifier sends a notification to the given FIDs. An empty recipient list
// means "broadcast to all opted-in users" where the backend supports it.
type Notifier interface {
	Send(ctx context.Context, fids []int64, n Notification) (DeliveryState, error)
}
