package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/Renal37/orderbridge/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = errors.New("заказ не найден")
)

const (
	orderColumns = `
		id,
		remote_order_id,
		remote_display_id,
		customer,
		kind,
		total,
		status,
		remote_status,
		created_at,
		updated_at,
		closed_at
	`

	InsertOrderQuery = `
		INSERT INTO
			orders (id, remote_order_id, remote_display_id, customer, kind, total, status, remote_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING` + orderColumns

	SelectOrderByRemoteIDQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		WHERE
			remote_order_id = $1
	`
	SelectOrderByIDQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		WHERE
			id = $1
	`
	SelectOrdersQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		ORDER BY
			created_at DESC
		LIMIT $1
	`
	SelectSyncableOrdersQuery = `
		SELECT` + orderColumns + `
		FROM
			orders
		WHERE
			status NOT IN ('CLOSED', 'CANCELLED')
			AND remote_order_id <> ''
		ORDER BY
			created_at
	`
	UpdateOrderStatusQuery = `
		UPDATE
			orders
		SET
			status = $2,
			remote_status = $3,
			closed_at = COALESCE(closed_at, $4),
			updated_at = now()
		WHERE
			id = $1
	`
	InsertOrderItemQuery = `
		INSERT INTO
			order_items (order_id, product_id, remote_line_id, sku, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	SelectOrderItemsQuery = `
		SELECT
			order_id,
			product_id,
			remote_line_id,
			sku,
			name,
			unit_price,
			quantity
		FROM
			order_items
		WHERE
			order_id = $1
		ORDER BY
			id
	`
	InsertOrderNoteQuery = `
		INSERT INTO
			order_notes (order_id, note)
		VALUES ($1, $2)
	`
)

// OrderDB описывает строку таблицы orders.
type OrderDB struct {
	ID              uuid.UUID
	RemoteOrderID   string
	RemoteDisplayID string
	Customer        string
	Kind            string
	Total           decimal.Decimal
	Status          LocalStatusDB
	RemoteStatus    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// OrderItemDB описывает позицию заказа. ProductID == nil означает, что позиция не сопоставлена с каталогом.
type OrderItemDB struct {
	OrderID      uuid.UUID
	ProductID    *uuid.UUID
	RemoteLineID string
	SKU          string
	Name         string
	UnitPrice    decimal.Decimal
	Quantity     int
}

// StatusUpdate описывает изменение статуса заказа. ClosedAt записывается, только если в базе он ещё пуст.
type StatusUpdate struct {
	LocalStatus  models.LocalStatus
	RemoteStatus models.EventCode
	ClosedAt     *time.Time
}

// LocalStatusDB позволяет читать и писать models.LocalStatus как текстовую колонку.
type LocalStatusDB struct {
	models.LocalStatus
}

func (s *LocalStatusDB) Scan(value interface{}) error {
	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("статус заказа должен быть строкой, а не %T", value)
	}

	*s = LocalStatusDB{models.LocalStatus(strVal)}
	return nil
}

func (s LocalStatusDB) Value() (driver.Value, error) {
	return string(s.LocalStatus), nil
}

func scanOrder(row pgx.Row) (*OrderDB, error) {
	order := &OrderDB{}

	err := row.Scan(
		&order.ID,
		&order.RemoteOrderID,
		&order.RemoteDisplayID,
		&order.Customer,
		&order.Kind,
		&order.Total,
		&order.Status,
		&order.RemoteStatus,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	return order, nil
}

func findOrder(ctx context.Context, q DBExecutor, query string, arg interface{}) (*OrderDB, error) {
	order, err := scanOrder(q.QueryRow(ctx, query, arg))
	if err != nil {
		// Отсутствие заказа не ошибка: вызывающий код решает сам
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска заказа: %w", err)
	}

	return order, nil
}

// FindOrderByRemoteID ищет заказ по идентификатору маркетплейса. Возвращает nil, nil, если заказа нет.
func (d *Database) FindOrderByRemoteID(ctx context.Context, remoteOrderID string) (*OrderDB, error) {
	return findOrder(ctx, d.db, SelectOrderByRemoteIDQuery, remoteOrderID)
}

// FindOrderByID ищет заказ по локальному идентификатору.
func (d *Database) FindOrderByID(ctx context.Context, orderID uuid.UUID) (*OrderDB, error) {
	return findOrder(ctx, d.db, SelectOrderByIDQuery, orderID)
}

// CreateOrderWithItems создаёт заказ вместе с позициями в одной транзакции.
// Если заказ с таким remote_order_id уже есть, возвращает существующую строку и created == false,
// позиции при этом не пишутся. Ошибка записи позиций откатывает и сам заказ.
func (d *Database) CreateOrderWithItems(ctx context.Context, order OrderDB, items []OrderItemDB) (*OrderDB, bool, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.Status.LocalStatus == "" {
		order.Status = LocalStatusDB{models.StatusPending}
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	tx, err := d.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	// После Commit откат ничего не делает
	defer tx.Rollback(ctx)

	created, err := scanOrder(tx.QueryRow(ctx, InsertOrderQuery,
		order.ID,
		order.RemoteOrderID,
		order.RemoteDisplayID,
		order.Customer,
		order.Kind,
		order.Total,
		order.Status,
		order.RemoteStatus,
		order.CreatedAt,
	))
	if err != nil {
		if !isUniqueViolation(err) {
			return nil, false, fmt.Errorf("ошибка создания заказа: %w", err)
		}

		// Транзакция уже прервана конфликтом, читаем строку конкурентного писателя через пул
		if err := tx.Rollback(ctx); err != nil {
			return nil, false, fmt.Errorf("ошибка отката транзакции: %w", err)
		}
		return d.findConflictingOrder(ctx, order.RemoteOrderID)
	}

	if err := insertOrderItems(ctx, tx, created.ID, items); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("ошибка фиксации заказа: %w", err)
	}

	return created, true, nil
}

func (d *Database) findConflictingOrder(ctx context.Context, remoteOrderID string) (*OrderDB, bool, error) {
	existing, err := d.FindOrderByRemoteID(ctx, remoteOrderID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("заказ %s пропал после конфликта вставки: %w", remoteOrderID, ErrOrderNotFound)
	}

	return existing, false, nil
}

// insertOrderItems записывает позиции заказа одним батчем внутри транзакции.
func insertOrderItems(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, items []OrderItemDB) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(InsertOrderItemQuery,
			orderID,
			item.ProductID,
			item.RemoteLineID,
			item.SKU,
			item.Name,
			item.UnitPrice,
			item.Quantity,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("ошибка записи позиций заказа: %w", err)
		}
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("ошибка записи позиций заказа: %w", err)
	}

	return nil
}

// FindOrderItems возвращает позиции заказа в порядке вставки.
func (d *Database) FindOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItemDB, error) {
	rows, err := d.db.Query(ctx, SelectOrderItemsQuery, orderID)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска позиций заказа: %w", err)
	}
	defer rows.Close()

	var result []OrderItemDB
	for rows.Next() {
		var item OrderItemDB
		if err := rows.Scan(&item.OrderID, &item.ProductID, &item.RemoteLineID, &item.SKU, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, fmt.Errorf("ошибка обработки строки с позицией: %w", err)
		}
		result = append(result, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по строкам: %w", err)
	}

	return result, nil
}

// UpdateOrderStatus обновляет локальный и удалённый статусы. closed_at, однажды записанный, не меняется.
func (d *Database) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, update StatusUpdate) error {
	tag, err := d.db.Exec(ctx, UpdateOrderStatusQuery,
		orderID,
		LocalStatusDB{update.LocalStatus},
		string(update.RemoteStatus),
		update.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса заказа: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// AddOrderNote добавляет заметку к заказу.
func (d *Database) AddOrderNote(ctx context.Context, orderID uuid.UUID, note string) error {
	if _, err := d.db.Exec(ctx, InsertOrderNoteQuery, orderID, note); err != nil {
		return fmt.Errorf("ошибка записи заметки к заказу: %w", err)
	}
	return nil
}

func (d *Database) findOrders(ctx context.Context, query string, args ...interface{}) ([]OrderDB, error) {
	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска заказов: %w", err)
	}
	defer rows.Close()

	var result []OrderDB
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка обработки строки с заказом: %w", err)
		}
		result = append(result, *order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации по строкам: %w", err)
	}

	return result, nil
}

// FindOrders возвращает последние limit заказов, новые первыми.
func (d *Database) FindOrders(ctx context.Context, limit int) ([]OrderDB, error) {
	return d.findOrders(ctx, SelectOrdersQuery, limit)
}

// FindSyncableOrders возвращает незавершённые заказы, которые знает маркетплейс.
func (d *Database) FindSyncableOrders(ctx context.Context) ([]OrderDB, error) {
	return d.findOrders(ctx, SelectSyncableOrdersQuery)
}
