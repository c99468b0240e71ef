// Package mailer dispatches transactional notifications through the external
// email collaborator. Delivery is best effort; a failed send never rolls back
// the state transition that triggered it.
package mailer

import "context"

type SetupLinkEmail struct {
	To            string
	RedemptionURL string
	TierLabel     string
}

type Mailer interface {
	SendSetupLink(ctx context.Context, email SetupLinkEmail) error
}
