package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/atlas-naturals/api/internal/domain"
	pfirestore "github.com/atlas-naturals/api/internal/platform/firestore"
	"github.com/atlas-naturals/api/internal/repositories"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber           string              `firestore:"orderNumber"`
	TrackingCode          string              `firestore:"trackingCode,omitempty"`
	Status                string              `firestore:"status"`
	Customer              orderCustomerDoc    `firestore:"customer"`
	ShippingAddress       string              `firestore:"shippingAddress"`
	City                  string              `firestore:"city"`
	CityName              string              `firestore:"cityName,omitempty"`
	Notes                 string              `firestore:"notes,omitempty"`
	Items                 []orderLineItemDoc  `firestore:"items"`
	Totals                orderTotalsDoc      `firestore:"totals"`
	Shipping              shippingQuoteDoc    `firestore:"shipping"`
	OrderDate             time.Time           `firestore:"orderDate"`
	EstimatedDeliveryDate time.Time           `firestore:"estimatedDeliveryDate,omitempty"`
	CancelReason          string              `firestore:"cancelReason,omitempty"`
	CancelledAt           *time.Time          `firestore:"cancelledAt,omitempty"`
	CreatedAt             time.Time           `firestore:"createdAt"`
	UpdatedAt             time.Time           `firestore:"updatedAt"`
}

type orderCustomerDoc struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email,omitempty"`
	Phone string `firestore:"phone"`
}

type orderLineItemDoc struct {
	ProductID    string `firestore:"productId"`
	ProductName  string `firestore:"productName"`
	CategoryName string `firestore:"categoryName,omitempty"`
	CategoryKind string `firestore:"categoryKind,omitempty"`
	SizeCode     string `firestore:"sizeCode"`
	Quantity     int    `firestore:"quantity"`
	UnitPrice    int64  `firestore:"unitPrice"`
	Total        int64  `firestore:"total"`
}

type orderTotalsDoc struct {
	Subtotal int64 `firestore:"subtotal"`
	Shipping int64 `firestore:"shipping"`
	Total    int64 `firestore:"total"`
}

type shippingQuoteDoc struct {
	Cost           int64  `firestore:"cost"`
	DeliveryWindow string `firestore:"deliveryWindow,omitempty"`
	IsFree         bool   `firestore:"isFree"`
	FreeReason     string `firestore:"freeReason,omitempty"`
}

// OrderRepository persists orders within Firestore. Orders are never deleted.
type OrderRepository struct {
	base *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		base: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil),
	}, nil
}

// Insert creates the order document, failing when the ID already exists.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrderDocument(order)
	result, err := r.base.Create(ctx, orderID, doc)
	if err != nil {
		return domain.Order{}, err
	}

	saved := decodeOrderDocument(orderID, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// FindByID fetches a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}
	doc, err := r.base.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrderDocument(doc.ID, doc.Data), nil
}

// FindByNumber resolves an order by its human-readable order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", orderNumber).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findByNumber", fmt.Errorf("order %q not found", orderNumber))
	}
	return decodeOrderDocument(docs[0].ID, docs[0].Data), nil
}

// Save overwrites the order document, used for status transitions and detail updates.
func (r *OrderRepository) Save(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(order.ID)
	if orderID == "" {
		return domain.Order{}, errors.New("order repository: order id is required")
	}

	doc := encodeOrderDocument(order)
	result, err := r.base.Set(ctx, orderID, doc)
	if err != nil {
		return domain.Order{}, err
	}

	saved := decodeOrderDocument(orderID, doc)
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}

// List returns orders ordered by most recent placement, optionally narrowed by
// status, city, and placement window.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	var startAfter []any
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenTime, tokenID, err := decodeListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("order repository: invalid page token: %w", err)
		}
		startAfter = []any{tokenTime, tokenID}
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Status != "" {
			q = q.Where("status", "==", string(filter.Status))
		}
		if filter.City != "" {
			q = q.Where("city", "==", string(filter.City))
		}
		if !filter.PlacedFrom.IsZero() {
			q = q.Where("orderDate", ">=", filter.PlacedFrom.UTC())
		}
		if !filter.PlacedTo.IsZero() {
			q = q.Where("orderDate", "<", filter.PlacedTo.UTC())
		}
		q = q.OrderBy("orderDate", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) == 2 {
			q = q.StartAfter(startAfter...)
		}
		if fetchLimit > 0 {
			q = q.Limit(fetchLimit)
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	valueDocs, tokenDoc := pageWindow(docs, limit)
	nextToken := ""
	if tokenDoc != nil {
		tokenTime := tokenDoc.Data.OrderDate
		if tokenTime.IsZero() {
			tokenTime = tokenDoc.CreateTime
		}
		nextToken = encodeListToken(tokenTime, tokenDoc.ID)
	}

	items := make([]domain.Order, 0, len(valueDocs))
	for _, doc := range valueDocs {
		items = append(items, decodeOrderDocument(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Order]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderLineItemDoc, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderLineItemDoc{
			ProductID:    strings.TrimSpace(item.ProductID),
			ProductName:  strings.TrimSpace(item.ProductName),
			CategoryName: strings.TrimSpace(item.CategoryName),
			CategoryKind: string(item.CategoryKind),
			SizeCode:     strings.TrimSpace(item.SizeCode),
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
		})
	}

	now := time.Now().UTC()
	createdAt := order.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = now
	}
	orderDate := order.OrderDate.UTC()
	if orderDate.IsZero() {
		orderDate = createdAt
	}

	return orderDocument{
		OrderNumber:  strings.ToUpper(strings.TrimSpace(order.OrderNumber)),
		TrackingCode: strings.TrimSpace(order.TrackingCode),
		Status:       string(order.Status),
		Customer: orderCustomerDoc{
			Name:  strings.TrimSpace(order.Customer.Name),
			Email: strings.TrimSpace(order.Customer.Email),
			Phone: strings.TrimSpace(order.Customer.Phone),
		},
		ShippingAddress: strings.TrimSpace(order.ShippingAddress),
		City:            string(order.City),
		CityName:        strings.TrimSpace(order.CityName),
		Notes:           strings.TrimSpace(order.Notes),
		Items:           items,
		Totals: orderTotalsDoc{
			Subtotal: order.Totals.Subtotal,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Shipping: shippingQuoteDoc{
			Cost:           order.Shipping.Cost,
			DeliveryWindow: order.Shipping.DeliveryWindow,
			IsFree:         order.Shipping.IsFree,
			FreeReason:     string(order.Shipping.FreeReason),
		},
		OrderDate:             orderDate,
		EstimatedDeliveryDate: order.EstimatedDeliveryDate.UTC(),
		CancelReason:          strings.TrimSpace(order.CancelReason),
		CancelledAt:           order.CancelledAt,
		CreatedAt:             createdAt,
		UpdatedAt:             now,
	}
}

func decodeOrderDocument(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderLineItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderLineItem{
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			CategoryName: item.CategoryName,
			CategoryKind: domain.CategoryKind(item.CategoryKind),
			SizeCode:     item.SizeCode,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			Total:        item.Total,
		})
	}

	return domain.Order{
		ID:           id,
		OrderNumber:  doc.OrderNumber,
		TrackingCode: doc.TrackingCode,
		Status:       domain.OrderStatus(doc.Status),
		Customer: domain.OrderCustomer{
			Name:  doc.Customer.Name,
			Email: doc.Customer.Email,
			Phone: doc.Customer.Phone,
		},
		ShippingAddress: doc.ShippingAddress,
		City:            domain.DeliveryCity(doc.City),
		CityName:        doc.CityName,
		Notes:           doc.Notes,
		Items:           items,
		Totals: domain.OrderTotals{
			Subtotal: doc.Totals.Subtotal,
			Shipping: doc.Totals.Shipping,
			Total:    doc.Totals.Total,
		},
		Shipping: domain.ShippingQuote{
			Cost:           doc.Shipping.Cost,
			DeliveryWindow: doc.Shipping.DeliveryWindow,
			IsFree:         doc.Shipping.IsFree,
			FreeReason:     domain.FreeShippingReason(doc.Shipping.FreeReason),
		},
		OrderDate:             doc.OrderDate,
		EstimatedDeliveryDate: doc.EstimatedDeliveryDate,
		CancelReason:          doc.CancelReason,
		CancelledAt:           doc.CancelledAt,
		CreatedAt:             doc.CreatedAt,
		UpdatedAt:             doc.UpdatedAt,
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
