package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/pkg/event"
	"github.com/shashiranjanraj/dukaan/pkg/logger"
	"github.com/shashiranjanraj/dukaan/pkg/queue"
)

// EventUserDeleted fires after an account document is removed. Payload is
// the user id hex string.
const EventUserDeleted = "user.deleted"

// CleanupSellerJob removes a deleted seller's products and their storage
// objects. It runs on the queue so account deletion stays fast and the
// cascade is retried with failure capture rather than racing the request.
type CleanupSellerJob struct {
	SellerID string `json:"seller_id"`

	products *repositories.ProductRepository
	intents  *repositories.IntentRepository
	photos   *PhotoGateway
}

// Handle deletes the seller's product documents, then their photo objects.
// Object keys are recorded as intents first, so a partial failure is picked
// up by the reconciliation sweep.
func (j *CleanupSellerJob) Handle() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sellerID, err := primitive.ObjectIDFromHex(j.SellerID)
	if err != nil {
		return fmt.Errorf("services: cleanup seller: bad id %q: %w", j.SellerID, err)
	}

	products, err := j.products.DeleteBySeller(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("services: cleanup seller %s: %w", j.SellerID, err)
	}
	if len(products) == 0 {
		return nil
	}

	keys := []string{}
	for _, p := range products {
		for _, photo := range p.Photos {
			keys = append(keys, photo.Key)
		}
	}
	if err := j.intents.Record(ctx, j.photos.DiskName(), keys...); err != nil {
		return err
	}

	cleared := []string{}
	for _, key := range keys {
		if err := j.photos.Remove(ctx, key); err != nil {
			logger.Warn("cleanup: photo delete deferred to sweep", "key", key, "error", err)
			continue
		}
		cleared = append(cleared, key)
	}
	if err := j.intents.Clear(ctx, cleared...); err != nil {
		return err
	}

	logger.Info("cleanup: seller products removed",
		"seller", j.SellerID,
		"products", len(products),
		"photos", len(cleared))
	return nil
}

// RegisterCleanup wires the cascade: registers the job type with the queue
// and subscribes the dispatcher to the user.deleted event.
func RegisterCleanup(products *repositories.ProductRepository, intents *repositories.IntentRepository, photos *PhotoGateway) {
	// Registered under the %T name the dispatcher uses in its envelopes.
	queue.Register(fmt.Sprintf("%T", &CleanupSellerJob{}), func() queue.Job {
		return &CleanupSellerJob{products: products, intents: intents, photos: photos}
	})

	event.Listen(EventUserDeleted, func(payload interface{}) {
		id, ok := payload.(string)
		if !ok {
			logger.Error("cleanup: unexpected user.deleted payload", "payload", payload)
			return
		}
		job := &CleanupSellerJob{
			SellerID: id,
			products: products,
			intents:  intents,
			photos:   photos,
		}
		if err := queue.Dispatch(job); err != nil {
			logger.Error("cleanup: dispatch failed", "seller", id, "error", err)
		}
	})
}
