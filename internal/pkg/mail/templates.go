package mail

import (
	"fmt"

	"github.com/greenfoldhq/greenfold/internal/pkg/env"
)

// RenderTemplate builds the HTML body for a named mail template. Unknown
// template names fall through to a plain content dump so a bad job payload
// never loses a mail entirely.
func RenderTemplate(template string, data map[string]string) string {
	publicURL := env.GetEnv("PUBLIC_URL", "http://localhost:3000")

	switch template {
	case "activation":
		return fmt.Sprintf(
			"<p>Hi %s,</p>"+
				"<p>welcome to GreenFold. Please confirm your email address:</p>"+
				"<p><a href=\"%s/auth/activate?token=%s\">Activate account</a></p>",
			data["name"], publicURL, data["token"])
	case "payment_failed":
		return fmt.Sprintf(
			"<p>Hi %s,</p>"+
				"<p>the last subscription payment for %s failed. "+
				"Please update your payment method to keep your subscription active.</p>",
			data["name"], data["organization"])
	case "subscription_cancelled":
		return fmt.Sprintf(
			"<p>Hi %s,</p>"+
				"<p>the subscription for %s was cancelled. "+
				"The organization falls back to the starter tier.</p>",
			data["name"], data["organization"])
	default:
		body := "<p>"
		for k, v := range data {
			body += fmt.Sprintf("%s: %s<br>", k, v)
		}
		return body + "</p>"
	}
}
