package domain

import "errors"

var (
	ErrInvalidProvider       = errors.New("invalid_provider")
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrMissingCustomerEmail  = errors.New("missing_customer_email")
	ErrPlatformLookup        = errors.New("platform_lookup_failed")
	ErrTokenNotFound         = errors.New("setup_token_not_found")
	ErrTokenNotRedeemable    = errors.New("setup_token_not_redeemable")
)
