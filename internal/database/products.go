package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	SelectProductBySKUQuery = `
		SELECT
			id,
			sku,
			name,
			price
		FROM
			products
		WHERE
			sku = $1
	`
	InsertProductQuery = `
		INSERT INTO
			products (id, sku, name, price)
		VALUES ($1, $2, $3, $4)
	`
	SelectProductMappingQuery = `
		SELECT
			remote_line_id,
			sku,
			product_id
		FROM
			product_mappings
		WHERE
			sku = $1
	`
	InsertProductMappingQuery = `
		INSERT INTO
			product_mappings (remote_line_id, sku, product_id)
		VALUES ($1, $2, $3)
	`
)

// ProductDB описывает товар локального каталога.
type ProductDB struct {
	ID    uuid.UUID
	SKU   string
	Name  string
	Price decimal.Decimal
}

// ProductMappingDB связывает SKU позиции маркетплейса с товаром каталога.
type ProductMappingDB struct {
	RemoteLineID string
	SKU          string
	ProductID    uuid.UUID
}

// FindProductBySKU ищет товар каталога по SKU. Возвращает nil, nil, если товара нет.
func (d *Database) FindProductBySKU(ctx context.Context, sku string) (*ProductDB, error) {
	product := &ProductDB{}

	err := d.db.QueryRow(ctx, SelectProductBySKUQuery, sku).
		Scan(&product.ID, &product.SKU, &product.Name, &product.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска товара: %w", err)
	}

	return product, nil
}

// CreateProduct добавляет товар в каталог.
func (d *Database) CreateProduct(ctx context.Context, product ProductDB) (uuid.UUID, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	if _, err := d.db.Exec(ctx, InsertProductQuery, product.ID, product.SKU, product.Name, product.Price); err != nil {
		return uuid.Nil, fmt.Errorf("ошибка создания товара: %w", err)
	}

	return product.ID, nil
}

// FindProductMappingBySKU ищет сохранённое сопоставление. Возвращает nil, nil, если его нет.
func (d *Database) FindProductMappingBySKU(ctx context.Context, sku string) (*ProductMappingDB, error) {
	mapping := &ProductMappingDB{}

	err := d.db.QueryRow(ctx, SelectProductMappingQuery, sku).
		Scan(&mapping.RemoteLineID, &mapping.SKU, &mapping.ProductID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка поиска сопоставления товара: %w", err)
	}

	return mapping, nil
}

// CreateProductMapping сохраняет сопоставление. Повторная запись того же SKU не считается ошибкой.
func (d *Database) CreateProductMapping(ctx context.Context, remoteLineID, sku string, productID uuid.UUID) error {
	if _, err := d.db.Exec(ctx, InsertProductMappingQuery, remoteLineID, sku, productID); err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("ошибка создания сопоставления товара: %w", err)
	}
	return nil
}
