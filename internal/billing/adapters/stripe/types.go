package stripe

import "encoding/json"

type stripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type stripeCheckoutSession struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Subscription    string `json:"subscription"`
	CustomerEmail   string `json:"customer_email"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
	Metadata map[string]string `json:"metadata"`
}

type stripeInvoice struct {
	ID                  string `json:"id"`
	Subscription        string `json:"subscription"`
	BillingReason       string `json:"billing_reason"`
	AmountPaid          int64  `json:"amount_paid"`
	Currency            string `json:"currency"`
	SubscriptionDetails struct {
		Subscription string            `json:"subscription"`
		Metadata     map[string]string `json:"metadata"`
	} `json:"subscription_details"`
}
