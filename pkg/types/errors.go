package types

import "errors"

var (
	// ErrBelowMinLot is returned by sizing when either venue's quantity
	// would be below its lot step.
	ErrBelowMinLot = errors.New("quantity below minimum lot step")

	// ErrInsufficientDepth is returned by a depth walk that exhausts the
	// ladder before filling the requested amount.
	ErrInsufficientDepth = errors.New("insufficient order book depth")

	// ErrInsufficientMargin marks a venue rejection for lack of margin.
	ErrInsufficientMargin = errors.New("insufficient margin")

	// ErrBookNotReady is returned when a replica lacks a full snapshot.
	ErrBookNotReady = errors.New("order book not ready")

	// ErrAllLegsRejected signals that both venues refused the paired open.
	ErrAllLegsRejected = errors.New("orders rejected on both venues")

	// ErrLegRejected signals a one-sided open failure that was rolled back.
	ErrLegRejected = errors.New("order rejected on one venue, rolled back")
)
