package apperrors

var (
	ErrUnauthenticated = New(KindUnauthenticated, "UNAUTHORIZED", "Authentication required")
	ErrInvalidToken    = New(KindUnauthenticated, "INVALID_TOKEN", "Invalid or expired token")
	ErrForbidden       = New(KindForbidden, "FORBIDDEN", "Insufficient permissions")

	ErrOrderNotFound      = New(KindNotFound, "ORDER_NOT_FOUND", "Order not found")
	ErrCustomerNotFound   = New(KindNotFound, "CUSTOMER_NOT_FOUND", "Customer not found")
	ErrServiceNotFound    = New(KindNotFound, "SERVICE_NOT_FOUND", "Service not found")
	ErrEmployeeNotFound   = New(KindNotFound, "EMPLOYEE_NOT_FOUND", "Employee not found")
	ErrPaymentNotFound    = New(KindNotFound, "PAYMENT_NOT_FOUND", "Payment not found")
	ErrOwnershipViolation = New(KindForbidden, "OWNERSHIP_VIOLATION", "Vehicle does not belong to this customer")

	ErrDuplicateService = New(KindConflict, "DUPLICATE_SERVICE", "Service already added to this order")
	ErrAlreadyPaid      = New(KindConflict, "ALREADY_PAID", "Order has already been paid")

	ErrInvalidAmount           = New(KindValidation, "INVALID_AMOUNT", "Order has no payable amount")
	ErrPaymentMismatch         = New(KindValidation, "PAYMENT_MISMATCH", "Payment does not match this order")
	ErrPaymentCustomerMismatch = New(KindForbidden, "PAYMENT_MISMATCH", "Payment belongs to a different customer")
	ErrPaymentNotCompleted     = New(KindValidation, "PAYMENT_NOT_COMPLETED", "Payment has not succeeded")
	ErrInvalidSignature        = New(KindValidation, "INVALID_SIGNATURE", "Webhook signature verification failed")

	ErrPaymentProvider = New(KindExternalService, "PAYMENT_PROVIDER_ERROR", "Payment provider request failed")
)
