package providers

import (
	"context"
	"time"
)

// Identity holds a resolved member of the identity service. The display-name
// label doubles as the point wallet: the balance is whatever the label's
// point marker says at the moment of resolution.
type Identity struct {
	UserID  string `json:"userId"`
	Label   string `json:"label"`
	Balance int64  `json:"balance"`
}

// ApplyStatus describes the outcome of a balance write.
type ApplyStatus int

const (
	// ApplyApplied means the new label was accepted by the identity service.
	ApplyApplied ApplyStatus = iota
	// ApplyRejected means the identity service refused the label write
	// (typically a permission hierarchy restriction). The member exists and
	// the operation may still proceed partially, depending on the caller.
	ApplyRejected
)

// ApplyResult reports how a balance write ended.
type ApplyResult struct {
	Status   ApplyStatus `json:"status"`
	NewLabel string      `json:"newLabel,omitempty"`
	Reason   string      `json:"reason,omitempty"`
}

// BalanceProvider resolves member identities and writes balances back into
// their display-name labels.
type BalanceProvider interface {
	// Resolve fetches the member's current label and decodes the balance
	// from it. A missing member yields an identity-not-found error.
	Resolve(ctx context.Context, userID string) (*Identity, error)
	// Apply rewrites the member's label so it encodes newBalance. A refused
	// write returns ApplyRejected rather than an error; transport failures
	// return an error.
	Apply(ctx context.Context, userID, currentLabel string, newBalance int64) (*ApplyResult, error)
}

// SpinNotification is the payload pushed to the notification sink after a
// completed spin.
type SpinNotification struct {
	UserID     string    `json:"userId"`
	Username   string    `json:"username"`
	ItemName   string    `json:"itemName"`
	Cost       int64     `json:"cost"`
	NewBalance int64     `json:"newBalance"`
	IsRare     bool      `json:"isRare"`
	Timestamp  time.Time `json:"timestamp"`
}

// NotifyProvider delivers spin result announcements to an external channel.
// Delivery is best effort: a failed notification never affects the spin.
type NotifyProvider interface {
	NotifySpin(ctx context.Context, n *SpinNotification) error
}
