package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service is the network-facing contract of the reconciliation engine.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
}

type EventRecordRepository interface {
	FindByProviderEventID(ctx context.Context, db *gorm.DB, providerEventID string) (*EventRecord, error)
	Insert(ctx context.Context, db *gorm.DB, record *EventRecord) error
}

type SetupTokenRepository interface {
	Insert(ctx context.Context, db *gorm.DB, token *AccountSetupToken) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AccountSetupToken, error)
	FindByPlatformSubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*AccountSetupToken, error)
}
