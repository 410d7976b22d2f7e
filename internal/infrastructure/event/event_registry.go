package event

import (
	"github.com/rentflow/backend/internal/domain/regularization"
)

// RegisterRegularizationEvents registers the charge regularization lifecycle
// events so stored streams can be replayed.
func RegisterRegularizationEvents(serializer *EventSerializer) {
	serializer.Register(regularization.EventTypeChargeRegularizationCalculated, &regularization.ChargeRegularizationCalculated{})
	serializer.Register(regularization.EventTypeChargeRegularizationApplied, &regularization.ChargeRegularizationApplied{})
	serializer.Register(regularization.EventTypeChargeRegularizationSent, &regularization.ChargeRegularizationSent{})
	serializer.Register(regularization.EventTypeChargeRegularizationSettled, &regularization.ChargeRegularizationSettled{})
}

// NewRegularizationSerializer returns a serializer with every lifecycle event registered
func NewRegularizationSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterRegularizationEvents(s)
	return s
}
