package server

import (
	"github.com/UnKnowSoDev/pianissimo-gacha/pkg/providers"
)

// Aliases so integrators only import the server package.

// BalanceProvider is an alias for providers.BalanceProvider
type BalanceProvider = providers.BalanceProvider

// NotifyProvider is an alias for providers.NotifyProvider
type NotifyProvider = providers.NotifyProvider

// Identity is an alias for providers.Identity
type Identity = providers.Identity

// ApplyResult is an alias for providers.ApplyResult
type ApplyResult = providers.ApplyResult

// SpinNotification is an alias for providers.SpinNotification
type SpinNotification = providers.SpinNotification
