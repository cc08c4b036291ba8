package database

import (
	"context"
	"errors"

	"bankcards/models"

	"github.com/google/uuid"
)

var (
	// ErrCardNotFound возвращается, если карты с указанным ID нет в хранилище
	ErrCardNotFound = errors.New("card not found")
	// ErrDuplicateCard возвращается при попытке сохранить уже существующий номер карты
	ErrDuplicateCard = errors.New("card number already exists")
	// ErrNoTransaction возвращается при блокировке строк вне транзакции
	ErrNoTransaction = errors.New("operation requires a transaction")
)

// CardStore хранилище карт.
// Реализации гарантируют, что изменения внутри WithTransaction применяются
// атомарно и что параллельные изменения одной карты не теряются.
type CardStore interface {
	Save(ctx context.Context, card *models.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	FindAllByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error)
	FindAll(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error)

	// LockByIDs блокирует карты до конца текущей транзакции
	LockByIDs(ctx context.Context, ids ...uuid.UUID) error
	// WithTransaction выполняет fn в транзакции; ошибка fn откатывает все изменения
	WithTransaction(ctx context.Context, fn func(tx CardStore) error) error
}
