package enums

// StatusField names which state machine a status change belongs to.
type StatusField string

const (
	StatusFieldOrder   StatusField = "order_status"
	StatusFieldPayment StatusField = "payment_status"
)

// String implements fmt.Stringer.
func (f StatusField) String() string {
	return string(f)
}
