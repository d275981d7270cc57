package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/atlas-naturals/api/internal/domain"
	"github.com/atlas-naturals/api/internal/platform/events"
	"github.com/atlas-naturals/api/internal/repositories"
)

const (
	maxTrackingFieldLen = 200
	maxTrackingNotesLen = 1000
)

var (
	// ErrTrackingInvalidInput signals the caller provided invalid data.
	ErrTrackingInvalidInput = errors.New("tracking: invalid input")
	// ErrTrackingOrderNotFound indicates the referenced order does not exist.
	ErrTrackingOrderNotFound = errors.New("tracking: order not found")
	// ErrTrackingUnavailable indicates the tracking backend cannot fulfil the request.
	ErrTrackingUnavailable = errors.New("tracking: unavailable")
)

// TrackingServiceDeps bundles the repositories backing the tracking log.
type TrackingServiceDeps struct {
	Orders      repositories.OrderRepository
	Tracking    repositories.TrackingRepository
	Publisher   events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type trackingService struct {
	orders    repositories.OrderRepository
	tracking  repositories.TrackingRepository
	publisher events.Publisher
	now       func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewTrackingService constructs a TrackingService enforcing dependency validation.
func NewTrackingService(deps TrackingServiceDeps) (TrackingService, error) {
	if deps.Orders == nil {
		return nil, errors.New("tracking service: order repository is required")
	}
	if deps.Tracking == nil {
		return nil, errors.New("tracking service: tracking repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &trackingService{
		orders:    deps.Orders,
		tracking:  deps.Tracking,
		publisher: publisher,
		now:       func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
	}, nil
}

// AppendEvent records a fulfillment checkpoint. The event is stored even when
// it does not match the order's lifecycle status; the result carries an
// advisory compatibility flag and the mismatch is logged.
func (s *trackingService) AppendEvent(ctx context.Context, cmd AppendTrackingEventCommand) (TrackingAppendResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return TrackingAppendResult{}, ErrTrackingInvalidInput
	}
	if !domain.ValidTrackingStatus(cmd.Status) {
		return TrackingAppendResult{}, fmt.Errorf("%w: unknown tracking status %q", ErrTrackingInvalidInput, cmd.Status)
	}
	location := strings.TrimSpace(cmd.Location)
	carrier := strings.TrimSpace(cmd.Carrier)
	notes := strings.TrimSpace(cmd.Notes)
	if len(location) > maxTrackingFieldLen || len(carrier) > maxTrackingFieldLen || len(notes) > maxTrackingNotesLen {
		return TrackingAppendResult{}, ErrTrackingInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if isRepoNotFound(err) {
			return TrackingAppendResult{}, ErrTrackingOrderNotFound
		}
		return TrackingAppendResult{}, ErrTrackingUnavailable
	}

	now := s.now()
	statusDate := cmd.StatusDate.UTC()
	if statusDate.IsZero() {
		statusDate = now
	}

	compatible := domain.TrackingCompatible(order.Status, cmd.Status)
	if !compatible {
		s.logger(ctx, "tracking.status_mismatch", map[string]any{
			"orderId":        order.ID,
			"orderStatus":    string(order.Status),
			"trackingStatus": string(cmd.Status),
		})
	}

	event, err := s.tracking.Append(ctx, domain.TrackingEvent{
		ID:         s.newID(),
		OrderID:    order.ID,
		Status:     cmd.Status,
		Location:   location,
		Carrier:    carrier,
		Notes:      notes,
		StatusDate: statusDate,
		CreatedAt:  now,
	})
	if err != nil {
		return TrackingAppendResult{}, ErrTrackingUnavailable
	}

	if _, err := s.publisher.PublishOrderEvent(ctx, events.OrderEvent{
		Type:        events.TypeTrackingAppended,
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Tracking:    string(event.Status),
		OccurredAt:  now,
	}); err != nil {
		s.logger(ctx, "tracking.publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}

	return TrackingAppendResult{Event: event, Compatible: compatible}, nil
}

// ListByOrder returns the tracking history for an order, most recent first.
// An existing order with no events yields an empty slice.
func (s *trackingService) ListByOrder(ctx context.Context, orderID string) ([]TrackingEvent, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, ErrTrackingInvalidInput
	}

	if _, err := s.orders.FindByID(ctx, id); err != nil {
		if isRepoNotFound(err) {
			return nil, ErrTrackingOrderNotFound
		}
		return nil, ErrTrackingUnavailable
	}

	eventsList, err := s.tracking.ListByOrder(ctx, id)
	if err != nil {
		return nil, ErrTrackingUnavailable
	}
	if eventsList == nil {
		eventsList = []TrackingEvent{}
	}
	return eventsList, nil
}
