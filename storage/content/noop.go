package content

import (
	"context"
	"log"
	"time"
)

// NoopRegistrar logs registrations and keeps nothing.
type NoopRegistrar struct{}

func (NoopRegistrar) Register(ctx context.Context, reg *Registration) (*Record, error) {
	rec, err := NewRecord(reg, time.Now())
	if err != nil {
		return nil, err
	}

	log.Println("Received no-op register request - dumping request information:")
	log.Printf("ID: %v", rec.ID)
	log.Printf("Title: %v", rec.Title)
	log.Printf("Vendor URL: %v", rec.Vendor.URL)
	if rec.Metadata != nil {
		log.Printf("Duration: %v", rec.Metadata.Duration)
	}

	return rec, nil
}

func (NoopRegistrar) Get(ctx context.Context, id string) (*Record, error) {
	log.Printf("Received no-op get request for %v", id)
	return nil, ErrNotFound
}

func (NoopRegistrar) Delete(ctx context.Context, id string) error {
	log.Printf("Received no-op delete request for %v", id)
	return nil
}
