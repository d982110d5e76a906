package constants

const (
	ROLE_CUSTOMER         = "customer"
	ROLE_RESTAURANT_OWNER = "restaurant_owner"
	ROLE_RESTAURANT_STAFF = "restaurant_staff"
	ROLE_DRIVER           = "driver"
	ROLE_ADMIN            = "admin"
)

const (
	ERROR_INTERNAL_ERROR      = "Internal server error"
	MISSING_TOKEN             = "Missing token"
	INVALID_TOKEN             = "Invalid token"
	ACCOUNT_NOT_ACTIVE        = "Account is not active"
	INVALID_INPUT             = "Invalid input"
	DATA_INPUT_IS_NOT_NUMBER  = "Parameter must be a number"
	ORDER_NOT_FOUND           = "Order not found"
	RESTAURANT_NOT_FOUND      = "Restaurant not found"
	NOT_AUTHORIZED            = "Not authorized"
	INVALID_STATUS_TRANSITION = "Invalid status transition"
	PAYMENT_PROVIDER_ERROR    = "Payment provider error"
	PI_AUTHENTICATION_FAILED  = "Pi Network authentication failed"
)

// Context keys shared by middleware and handlers.
const (
	LOCALS_PRINCIPAL = "principal"
	LOCALS_INPUT     = "input"
	LOCALS_TOKEN     = "user"
)
