package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/maintlog/logbook-gateway/internal/core/domain"
)

const auditCollection = "auth_audit"

// AuditRepository persists auth lifecycle events to MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(auditCollection)}
}

type mongoAuditEvent struct {
	SessionID string `bson:"session_id"`
	Username  string `bson:"username,omitempty"`
	Kind      string `bson:"kind"`
	Detail    string `bson:"detail,omitempty"`
	At        int64  `bson:"at"`
}

func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	doc := mongoAuditEvent{
		SessionID: event.SessionID,
		Username:  event.Username,
		Kind:      string(event.Kind),
		Detail:    event.Detail,
		At:        event.At.Unix(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// FindBySession returns the most recent events for one browser session,
// newest first.
func (r *AuditRepository) FindBySession(ctx context.Context, sessionID string, limit int64) ([]domain.AuditEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "at", Value: -1}}).
		SetLimit(limit)

	cur, err := r.coll.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find audit events: %w", err)
	}
	defer cur.Close(ctx)

	var events []domain.AuditEvent
	for cur.Next(ctx) {
		var doc mongoAuditEvent
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode audit event: %w", err)
		}
		events = append(events, domain.AuditEvent{
			SessionID: doc.SessionID,
			Username:  doc.Username,
			Kind:      domain.AuditKind(doc.Kind),
			Detail:    doc.Detail,
			At:        time.Unix(doc.At, 0).UTC(),
		})
	}
	return events, cur.Err()
}
