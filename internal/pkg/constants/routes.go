package constants

// Static route constants
const (
	PublicRoute        = "/"
	AuthRegisterRoute  = "/auth/register"
	AuthLoginRoute     = "/auth/login"
	AuthLogoutRoute    = "/auth/logout"
	OrganizationsRoute = "/organizations"
	ReportsRoute       = "/reports"
	BillingRoute       = "/billing"
	StripeWebhookRoute = "/webhooks/stripe"
	NotificationsRoute = "/notifications"
	AdminRoute         = "/admin"
	APIv1Route         = "/api/v1"
)
