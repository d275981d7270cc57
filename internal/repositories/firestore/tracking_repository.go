package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-naturals/api/internal/domain"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const trackingCollection = "tracking_events"

type trackingEventDocument struct {
	OrderID    string    `firestore:"orderId"`
	Status     string    `firestore:"status"`
	Location   string    `firestore:"location,omitempty"`
	Carrier    string    `firestore:"carrier,omitempty"`
	Notes      string    `firestore:"notes,omitempty"`
	StatusDate time.Time `firestore:"statusDate"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// TrackingRepository stores the append-only tracking event log. Events are
// created once and never updated or deleted.
type TrackingRepository struct {
	base *pfirestore.BaseRepository[trackingEventDocument]
}

// NewTrackingRepository constructs a Firestore-backed tracking repository.
func NewTrackingRepository(provider *pfirestore.Provider) (*TrackingRepository, error) {
	if provider == nil {
		return nil, errors.New("tracking repository requires firestore provider")
	}
	return &TrackingRepository{
		base: pfirestore.NewBaseRepository[trackingEventDocument](provider, trackingCollection, nil),
	}, nil
}

// Append inserts the tracking event, failing when the ID already exists.
func (r *TrackingRepository) Append(ctx context.Context, event domain.TrackingEvent) (domain.TrackingEvent, error) {
	if r == nil || r.base == nil {
		return domain.TrackingEvent{}, errors.New("tracking repository not initialised")
	}
	eventID := strings.TrimSpace(event.ID)
	if eventID == "" {
		return domain.TrackingEvent{}, errors.New("tracking repository: event id is required")
	}
	orderID := strings.TrimSpace(event.OrderID)
	if orderID == "" {
		return domain.TrackingEvent{}, errors.New("tracking repository: order id is required")
	}

	now := time.Now().UTC()
	createdAt := event.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	statusDate := event.StatusDate.UTC()
	if statusDate.IsZero() {
		statusDate = createdAt
	}

	doc := trackingEventDocument{
		OrderID:    orderID,
		Status:     string(event.Status),
		Location:   strings.TrimSpace(event.Location),
		Carrier:    strings.TrimSpace(event.Carrier),
		Notes:      strings.TrimSpace(event.Notes),
		StatusDate: statusDate,
		CreatedAt:  createdAt,
	}

	if _, err := r.base.Create(ctx, eventID, doc); err != nil {
		return domain.TrackingEvent{}, err
	}

	return decodeTrackingEventDocument(eventID, doc), nil
}

// ListByOrder returns the tracking history for an order, most recent first.
// An order without events yields an empty slice, not an error.
func (r *TrackingRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.TrackingEvent, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("tracking repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, errors.New("tracking repository: order id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderId", "==", orderID).
			OrderBy("statusDate", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
	})
	if err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0, len(docs))
	for _, doc := range docs {
		events = append(events, decodeTrackingEventDocument(doc.ID, doc.Data))
	}
	return events, nil
}

func decodeTrackingEventDocument(id string, doc trackingEventDocument) domain.TrackingEvent {
	return domain.TrackingEvent{
		ID:         id,
		OrderID:    doc.OrderID,
		Status:     domain.TrackingStatus(doc.Status),
		Location:   doc.Location,
		Carrier:    doc.Carrier,
		Notes:      doc.Notes,
		StatusDate: doc.StatusDate,
		CreatedAt:  doc.CreatedAt,
	}
}

var _ repositories.TrackingRepository = (*TrackingRepository)(nil)
