package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoginAttempt is one audit record of a completed or failed login.
type LoginAttempt struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	InstanceID string             `bson:"instance_id"`
	Method     string             `bson:"method"`
	Result     string             `bson:"result"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// DownloadRecord is one audit record of a finished history download.
type DownloadRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	InstanceID   string             `bson:"instance_id"`
	DownloadID   int64              `bson:"download_id"`
	Status       string             `bson:"status"`
	MessageCount int                `bson:"message_count"`
	CreatedAt    time.Time          `bson:"created_at"`
}

// AuditRepository persists flow outcomes for support and abuse review.
// It is optional infrastructure: a nil repository silently records
// nothing, so the gateway runs fine without Mongo.
type AuditRepository struct {
	logins    *mongo.Collection
	downloads *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{
		logins:    db.Collection("login_attempts"),
		downloads: db.Collection("download_records"),
	}
}

// RecordLogin stores one login outcome.
func (r *AuditRepository) RecordLogin(ctx context.Context, instanceID, method, result string) error {
	if r == nil {
		return nil
	}
	attempt := LoginAttempt{
		InstanceID: instanceID,
		Method:     method,
		Result:     result,
		CreatedAt:  time.Now(),
	}
	if _, err := r.logins.InsertOne(ctx, attempt); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// RecordDownload stores one finished download.
func (r *AuditRepository) RecordDownload(ctx context.Context, instanceID string, downloadID int64, status string, messageCount int) error {
	if r == nil {
		return nil
	}
	record := DownloadRecord{
		InstanceID:   instanceID,
		DownloadID:   downloadID,
		Status:       status,
		MessageCount: messageCount,
		CreatedAt:    time.Now(),
	}
	if _, err := r.downloads.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to record download: %w", err)
	}
	return nil
}

// RecentLogins returns the newest attempts for one instance.
func (r *AuditRepository) RecentLogins(ctx context.Context, instanceID string, limit int64) ([]LoginAttempt, error) {
	if r == nil {
		return nil, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.logins.Find(ctx, bson.M{"instance_id": instanceID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query login attempts: %w", err)
	}
	defer cursor.Close(ctx)

	var attempts []LoginAttempt
	if err := cursor.All(ctx, &attempts); err != nil {
		return nil, fmt.Errorf("failed to decode login attempts: %w", err)
	}
	return attempts, nil
}
