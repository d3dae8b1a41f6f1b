package rental

import "context"

// ServiceOption configures a Service instance.
type ServiceOption func(*Service)

// OperationLogger records domain-level events emitted by Service operations.
type OperationLogger interface {
	LogOperation(ctx context.Context, entry OperationLog)
}

// OperationLog describes a state-changing rental operation.
type OperationLog struct {
	Operation string
	BookingID int64
	Reference string
	UserID    int64
	ProductID int64
	Points    int64
	Quantity  int64
	To        BookingStatus
	Status    string
	Error     error
}

// WithOperationLogger wires a logger that receives callbacks for every
// operation.
func WithOperationLogger(logger OperationLogger) ServiceOption {
	return func(service *Service) {
		service.logger = logger
	}
}

// WithNotifier wires the fire-and-forget booking notifier.
func WithNotifier(notifier Notifier) ServiceOption {
	return func(service *Service) {
		service.notifier = notifier
	}
}

// WithReferenceGenerator overrides booking reference generation.
func WithReferenceGenerator(generate func() string) ServiceOption {
	return func(service *Service) {
		if generate != nil {
			service.referenceFn = generate
		}
	}
}
