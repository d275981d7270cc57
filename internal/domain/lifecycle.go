package domain

// happyPath is the strictly forward order progression. The admin surface only
// offers the next step per state; the service remains the authority on every
// transition.
var happyPath = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:      {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing:     {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:        {OrderStatusOutForDelivery, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusOutForDelivery: {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
}

var cancellableStatuses = map[OrderStatus]bool{
	OrderStatusPending:    true,
	OrderStatusConfirmed:  true,
	OrderStatusProcessing: true,
}

// OrderStatuses lists every lifecycle state in presentation order.
func OrderStatuses() []OrderStatus {
	statuses := make([]OrderStatus, 0, len(happyPath)+2)
	statuses = append(statuses, happyPath...)
	return append(statuses, OrderStatusCancelled, OrderStatusRefunded)
}

// ValidOrderStatus reports whether the value is a known lifecycle state.
func ValidOrderStatus(status OrderStatus) bool {
	for _, s := range OrderStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether no further transitions are permitted.
func IsTerminalStatus(status OrderStatus) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a permitted lifecycle move.
func CanTransition(from, to OrderStatus) bool {
	for _, candidate := range orderStatusTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// NextStatus returns the forward happy-path successor of a state, false for
// terminal states and the absorbing side branches.
func NextStatus(status OrderStatus) (OrderStatus, bool) {
	for i, s := range happyPath {
		if s == status && i+1 < len(happyPath) {
			return happyPath[i+1], true
		}
	}
	return "", false
}

// IsCancellable reports whether the customer- or admin-facing flow may cancel
// an order in the given state. Orders at or beyond SHIPPED, and terminal
// orders, are not cancellable.
func IsCancellable(status OrderStatus) bool {
	return cancellableStatuses[status]
}

// trackingCompatibility documents which tracking checkpoints are expected for
// each lifecycle state. The relation is advisory: appends that fall outside
// it are accepted and flagged, not rejected (two independently-mutable
// progress representations are kept deliberately, tracking being the
// finer-grained one).
var trackingCompatibility = map[OrderStatus][]TrackingStatus{
	OrderStatusPending:        {TrackingOrderPlaced},
	OrderStatusConfirmed:      {TrackingOrderPlaced, TrackingConfirmed},
	OrderStatusProcessing:     {TrackingConfirmed, TrackingProcessing, TrackingPacked},
	OrderStatusShipped:        {TrackingPacked, TrackingShipped, TrackingInTransit, TrackingDeliveryAttempted},
	OrderStatusOutForDelivery: {TrackingInTransit, TrackingOutForDelivery, TrackingDeliveryAttempted},
	OrderStatusDelivered:      {TrackingOutForDelivery, TrackingDelivered},
	OrderStatusCancelled:      {TrackingCancelled, TrackingReturned},
	OrderStatusRefunded:       {TrackingCancelled, TrackingReturned},
}

// TrackingStatuses lists every tracking checkpoint.
func TrackingStatuses() []TrackingStatus {
	return []TrackingStatus{
		TrackingOrderPlaced,
		TrackingConfirmed,
		TrackingProcessing,
		TrackingPacked,
		TrackingShipped,
		TrackingInTransit,
		TrackingOutForDelivery,
		TrackingDelivered,
		TrackingDeliveryAttempted,
		TrackingCancelled,
		TrackingReturned,
	}
}

// ValidTrackingStatus reports whether the value is a known checkpoint.
func ValidTrackingStatus(status TrackingStatus) bool {
	for _, s := range TrackingStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// TrackingCompatible reports whether appending the checkpoint is consistent
// with the order's current lifecycle state under the advisory relation.
func TrackingCompatible(orderStatus OrderStatus, tracking TrackingStatus) bool {
	for _, candidate := range trackingCompatibility[orderStatus] {
		if candidate == tracking {
			return true
		}
	}
	return false
}
