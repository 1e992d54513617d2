package types

import "strconv"

// Side represents the trading side (buy or sell).
type Side int

const (
	Buy Side = iota
	Sell
)

// String implements fmt.Stringer for Side.
func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return "Side(" + strconv.Itoa(int(s)) + ")"
	}
}

// Opposite returns the opposite trading side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderStatus represents the status of an order in the paper broker.
type OrderStatus int

const (
	StatusNew OrderStatus = iota
	StatusOpen
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

// String implements fmt.Stringer for OrderStatus.
func (os OrderStatus) String() string {
	switch os {
	case StatusNew:
		return "NEW"
	case StatusOpen:
		return "OPEN"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "OrderStatus(" + strconv.Itoa(int(os)) + ")"
	}
}

// Terminal reports whether the status is a terminal order state.
// Terminal orders never transition again.
func (os OrderStatus) Terminal() bool {
	switch os {
	case StatusFilled, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// SubscriptionKind identifies the kind of market-data stream.
type SubscriptionKind int

const (
	KindLevel1 SubscriptionKind = iota
	KindLevel2
	KindOrderFlow
)

// String implements fmt.Stringer for SubscriptionKind.
func (k SubscriptionKind) String() string {
	switch k {
	case KindLevel1:
		return "level1"
	case KindLevel2:
		return "level2"
	case KindOrderFlow:
		return "orderflow"
	default:
		return "SubscriptionKind(" + strconv.Itoa(int(k)) + ")"
	}
}
