package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/orderbridge/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrDuplicateOperator = errors.New("оператор уже существует")
)

const (
	InsertOperatorQuery = `
		INSERT INTO
			operators (id, login, hash)
		VALUES ($1, $2, $3)
	`
	SelectOperatorQuery = `
		SELECT
			id,
			login,
			hash
		FROM
			operators
		WHERE
			login = $1
	`
)

type OperatorDB struct {
	ID    uuid.UUID
	Login string
	Hash  string
}

func (o OperatorDB) toModel() *models.Operator {
	return &models.Operator{ID: o.ID.String(), Login: o.Login, Hash: o.Hash}
}

// CreateOperator сохраняет учётную запись оператора.
func (d *Database) CreateOperator(ctx context.Context, operator OperatorDB) error {
	if operator.ID == uuid.Nil {
		operator.ID = uuid.New()
	}

	if _, err := d.db.Exec(ctx, InsertOperatorQuery, operator.ID, operator.Login, operator.Hash); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateOperator
		}
		return fmt.Errorf("ошибка при создании оператора: %w", err)
	}
	return nil
}

// FindOperator находит оператора по логину. Возвращает nil, nil, если его нет.
func (d *Database) FindOperator(ctx context.Context, login string) (*models.Operator, error) {
	var operator OperatorDB

	err := d.db.QueryRow(ctx, SelectOperatorQuery, login).Scan(&operator.ID, &operator.Login, &operator.Hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка при получении оператора: %w", err)
	}

	return operator.toModel(), nil
}
