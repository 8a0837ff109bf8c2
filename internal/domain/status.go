package domain

// OrderStatus is the lifecycle state of a sale. In-person sales are born
// completed; online orders start pending payment verification and move
// through the transition table below.
type OrderStatus string

const (
	StatusPendingPayment   OrderStatus = "pending_payment_verification"
	StatusProcessing       OrderStatus = "processing"
	StatusReadyForPickup   OrderStatus = "ready_for_pickup"
	StatusReadyForDelivery OrderStatus = "ready_for_delivery"
	StatusCompleted        OrderStatus = "completed"
	StatusCancelled        OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:   {StatusProcessing, StatusCancelled},
	StatusProcessing:       {StatusReadyForPickup, StatusReadyForDelivery, StatusCompleted, StatusCancelled},
	StatusReadyForPickup:   {StatusCompleted, StatusCancelled},
	StatusReadyForDelivery: {StatusCompleted, StatusCancelled},
	StatusCompleted:        nil,
	StatusCancelled:        nil,
}

// CanTransition reports whether moving from one status to another is legal.
// Cancellation is additionally gated by the configured cancellable set; this
// table only encodes structural legality.
func CanTransition(from OrderStatus, to OrderStatus) bool {
	for _, allowed := range orderTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(raw) {
	case StatusPendingPayment, StatusProcessing, StatusReadyForPickup,
		StatusReadyForDelivery, StatusCompleted, StatusCancelled:
		return OrderStatus(raw), true
	}
	return "", false
}

func ValidOrderType(t string) bool {
	switch t {
	case OrderTypeInPerson, OrderTypePickup, OrderTypeDelivery:
		return true
	}
	return false
}
