package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/models"
	"github.com/google/uuid"
)

// memRepository mirrors the guarantees of database.Database in memory: a unique
// remote_order_id, closed_at written once, and unique SKU mappings.
type memRepository struct {
	mu sync.Mutex

	orders   map[uuid.UUID]*database.OrderDB
	byRemote map[string]uuid.UUID
	items    map[uuid.UUID][]database.OrderItemDB
	notes    map[uuid.UUID][]string
	products map[string]database.ProductDB
	mappings map[string]database.ProductMappingDB

	statusWrites int
	creates      int
	createErr    error
}

func newMemRepository() *memRepository {
	return &memRepository{
		orders:   make(map[uuid.UUID]*database.OrderDB),
		byRemote: make(map[string]uuid.UUID),
		items:    make(map[uuid.UUID][]database.OrderItemDB),
		notes:    make(map[uuid.UUID][]string),
		products: make(map[string]database.ProductDB),
		mappings: make(map[string]database.ProductMappingDB),
	}
}

func (m *memRepository) addOrder(remoteOrderID string, status models.LocalStatus, remoteStatus models.EventCode) *database.OrderDB {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := &database.OrderDB{
		ID:            uuid.New(),
		RemoteOrderID: remoteOrderID,
		Kind:          string(models.KindDelivery),
		Status:        database.LocalStatusDB{LocalStatus: status},
		RemoteStatus:  string(remoteStatus),
		CreatedAt:     time.Now(),
	}
	m.orders[order.ID] = order
	m.byRemote[remoteOrderID] = order.ID

	copied := *order
	return &copied
}

func (m *memRepository) addProduct(sku, name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New()
	m.products[sku] = database.ProductDB{ID: id, SKU: sku, Name: name}
	return id
}

func (m *memRepository) order(remoteOrderID string) *database.OrderDB {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byRemote[remoteOrderID]
	if !ok {
		return nil
	}
	copied := *m.orders[id]
	return &copied
}

func (m *memRepository) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memRepository) itemsOf(orderID uuid.UUID) []database.OrderItemDB {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.OrderItemDB(nil), m.items[orderID]...)
}

func (m *memRepository) notesOf(orderID uuid.UUID) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.notes[orderID]...)
}

func (m *memRepository) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusWrites + m.creates
}

func (m *memRepository) FindOrderByRemoteID(_ context.Context, remoteOrderID string) (*database.OrderDB, error) {
	return m.order(remoteOrderID), nil
}

func (m *memRepository) FindOrderByID(_ context.Context, orderID uuid.UUID) (*database.OrderDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	copied := *order
	return &copied, nil
}

func (m *memRepository) CreateOrderWithItems(_ context.Context, order database.OrderDB, items []database.OrderItemDB) (*database.OrderDB, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byRemote[order.RemoteOrderID]; ok {
		copied := *m.orders[id]
		return &copied, false, nil
	}

	// A failed transaction leaves neither the order nor its items behind
	if m.createErr != nil {
		err := m.createErr
		m.createErr = nil
		return nil, false, err
	}

	m.creates++
	order.ID = uuid.New()
	stored := order
	m.orders[order.ID] = &stored
	m.byRemote[order.RemoteOrderID] = order.ID

	for _, item := range items {
		item.OrderID = order.ID
		m.items[order.ID] = append(m.items[order.ID], item)
	}

	return &order, true, nil
}

// failNextCreate makes the next CreateOrderWithItems call for a new order fail.
func (m *memRepository) failNextCreate(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErr = err
}

func (m *memRepository) FindOrderItems(_ context.Context, orderID uuid.UUID) ([]database.OrderItemDB, error) {
	return m.itemsOf(orderID), nil
}

func (m *memRepository) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, update database.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[orderID]
	if !ok {
		return database.ErrOrderNotFound
	}

	m.statusWrites++
	order.Status = database.LocalStatusDB{LocalStatus: update.LocalStatus}
	order.RemoteStatus = string(update.RemoteStatus)
	if order.ClosedAt == nil && update.ClosedAt != nil {
		closedAt := *update.ClosedAt
		order.ClosedAt = &closedAt
	}
	return nil
}

func (m *memRepository) FindProductMappingBySKU(_ context.Context, sku string) (*database.ProductMappingDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[sku]
	if !ok {
		return nil, nil
	}
	return &mapping, nil
}

func (m *memRepository) FindProductBySKU(_ context.Context, sku string) (*database.ProductDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[sku]
	if !ok {
		return nil, nil
	}
	return &product, nil
}

func (m *memRepository) CreateProductMapping(_ context.Context, remoteLineID, sku string, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.mappings[sku]; !ok {
		m.mappings[sku] = database.ProductMappingDB{RemoteLineID: remoteLineID, SKU: sku, ProductID: productID}
	}
	return nil
}

func (m *memRepository) AddOrderNote(_ context.Context, orderID uuid.UUID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.notes[orderID] = append(m.notes[orderID], note)
	return nil
}

func (m *memRepository) FindSyncableOrders(_ context.Context) ([]database.OrderDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []database.OrderDB
	for _, order := range m.orders {
		if order.Status.IsTerminal() || order.RemoteOrderID == "" {
			continue
		}
		result = append(result, *order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].RemoteOrderID < result[j].RemoteOrderID })

	return result, nil
}

func (m *memRepository) FindOrders(_ context.Context, limit int) ([]database.OrderDB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []database.OrderDB
	for _, order := range m.orders {
		result = append(result, *order)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}
