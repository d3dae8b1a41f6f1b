package rental

const (
	operationCreateBooking = "create_booking"
	operationUpdateStatus  = "update_status"
	operationApplyDiscount = "apply_discount"
	operationAttachReceipt = "attach_receipt"
	operationAddStock      = "add_stock"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	// Milestone schedule: every complete block of approved bookings
	// grants a fixed number of points.
	milestoneBookings       = 25
	milestonePointsPerBlock = 100

	// The unique column on bookings.reference_number is the authoritative
	// uniqueness guarantee; generation is best-effort and retried.
	maxReferenceAttempts = 3
)
