package models

// Kafka topics published and consumed by this service.
const (
	TopicBookingCreated   = "gym.bookings.created"
	TopicBookingCancelled = "gym.bookings.cancelled"
	TopicAttendanceMarked = "gym.attendance.marked"
	TopicPackageGranted   = "gym.packages.granted"
	TopicClassCancelled   = "gym.classes.cancelled"
	TopicPaymentApproved  = "gym.payments.approved"
)

// PaymentApprovedEvent arrives from the payment review system once a
// member's bank transfer has been verified by staff.
type PaymentApprovedEvent struct {
	MemberID   string `json:"member_id"`
	PackageID  string `json:"package_id"`
	PaymentRef string `json:"payment_ref"`
	ApprovedAt int64  `json:"approved_at"` // unix seconds
}
