package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/servipro/booking-api/internal/core/domain"
)

const attemptsCollection = "booking_attempts"

// AuditRepository implements ports.AuditRepository on the booking_attempts collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(attemptsCollection)}
}

// EnsureIndexes creates the (session_id, attempt) lookup index. It is idempotent.
func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "attempt", Value: 1}},
		Options: options.Index().SetName("session_attempt"),
	})
	if err != nil {
		return fmt.Errorf("create %s index: %w", attemptsCollection, err)
	}
	return nil
}

func (r *AuditRepository) InsertAttempt(ctx context.Context, event domain.SubmissionEvent) error {
	if _, err := r.coll.InsertOne(ctx, attemptDocument(event)); err != nil {
		return fmt.Errorf("insert attempt %s#%d: %w", event.SessionID, event.Attempt, err)
	}
	return nil
}

// SessionAttempts returns every recorded attempt of one wizard session, oldest first.
func (r *AuditRepository) SessionAttempts(ctx context.Context, sessionID string) ([]domain.SubmissionEvent, error) {
	cur, err := r.coll.Find(ctx, bson.M{"session_id": sessionID},
		options.Find().SetSort(bson.D{{Key: "attempt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find attempts %s: %w", sessionID, err)
	}
	defer cur.Close(ctx)

	var docs []attemptDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode attempts %s: %w", sessionID, err)
	}
	out := make([]domain.SubmissionEvent, len(docs))
	for i, d := range docs {
		out[i] = d.event()
	}
	return out, nil
}

type attemptDoc struct {
	SessionID  string `bson:"session_id"`
	Attempt    int    `bson:"attempt"`
	Outcome    string `bson:"outcome"`
	Email      string `bson:"email"`
	UserID     string `bson:"user_id,omitempty"`
	UserReused bool   `bson:"user_reused"`
	BookingID  string `bson:"booking_id,omitempty"`
	ServiceID  string `bson:"service_id"`
	ErrorKind  string `bson:"error_kind,omitempty"`
	Error      string `bson:"error,omitempty"`
	OccurredAt int64  `bson:"occurred_at"`
}

func attemptDocument(e domain.SubmissionEvent) attemptDoc {
	return attemptDoc{
		SessionID:  e.SessionID,
		Attempt:    e.Attempt,
		Outcome:    string(e.Outcome),
		Email:      e.Email,
		UserID:     e.UserID,
		UserReused: e.UserReused,
		BookingID:  e.BookingID,
		ServiceID:  e.ServiceID,
		ErrorKind:  e.ErrorKind,
		Error:      e.Error,
		OccurredAt: e.OccurredAt.UnixMilli(),
	}
}

func (d attemptDoc) event() domain.SubmissionEvent {
	return domain.SubmissionEvent{
		SessionID:  d.SessionID,
		Attempt:    d.Attempt,
		Outcome:    domain.SubmissionOutcome(d.Outcome),
		Email:      d.Email,
		UserID:     d.UserID,
		UserReused: d.UserReused,
		BookingID:  d.BookingID,
		ServiceID:  d.ServiceID,
		ErrorKind:  d.ErrorKind,
		Error:      d.Error,
		OccurredAt: time.UnixMilli(d.OccurredAt).UTC(),
	}
}
