package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Renal37/orderbridge/internal/database"
	"github.com/Renal37/orderbridge/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrOperatorIsAlreadyRegistered = errors.New("оператор уже зарегистрирован")
	ErrOperatorIsNotExist          = errors.New("оператор не существует")
	ErrPasswordIsIncorrect         = errors.New("пароль неверен")
	ErrEmptyLogin                  = errors.New("логин не может быть пустым")
	ErrEmptyPassword               = errors.New("пароль не может быть пустым")
)

// AuthService регистрирует операторов панели и проверяет их пароли.
type AuthService struct {
	storage authStorage
}

type authStorage interface {
	CreateOperator(ctx context.Context, operator database.OperatorDB) error
	FindOperator(ctx context.Context, login string) (*models.Operator, error)
}

func NewAuthService(storage authStorage) *AuthService {
	return &AuthService{storage: storage}
}

// Register создаёт оператора с bcrypt-хэшем пароля.
func (auth *AuthService) Register(ctx context.Context, operator models.UnknownOperator) error {
	if err := validateOperator(operator); err != nil {
		return err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(*operator.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("ошибка при хэшировании пароля: %w", err)
	}

	err = auth.storage.CreateOperator(ctx, database.OperatorDB{
		Login: *operator.Login,
		Hash:  string(hashedPassword),
	})
	if err != nil {
		if errors.Is(err, database.ErrDuplicateOperator) {
			return ErrOperatorIsAlreadyRegistered
		}
		return err
	}

	return nil
}

// Login проверяет пару логин/пароль.
func (auth *AuthService) Login(ctx context.Context, operator models.UnknownOperator) error {
	if err := validateOperator(operator); err != nil {
		return err
	}

	found, err := auth.storage.FindOperator(ctx, *operator.Login)
	if err != nil {
		return err
	}
	if found == nil {
		return ErrOperatorIsNotExist
	}

	if err := bcrypt.CompareHashAndPassword([]byte(found.Hash), []byte(*operator.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordIsIncorrect
		}
		return fmt.Errorf("ошибка при сравнении паролей: %w", err)
	}

	return nil
}

func (auth *AuthService) GetOperator(ctx context.Context, login string) (*models.Operator, error) {
	operator, err := auth.storage.FindOperator(ctx, login)
	if err != nil {
		return nil, err
	}
	if operator == nil {
		return nil, ErrOperatorIsNotExist
	}

	return operator, nil
}

func validateOperator(operator models.UnknownOperator) error {
	if operator.Login == nil || *operator.Login == "" {
		return ErrEmptyLogin
	}
	if operator.Password == nil || *operator.Password == "" {
		return ErrEmptyPassword
	}
	return nil
}
