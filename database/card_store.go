package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"bankcards/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCardStore хранит карты в PostgreSQL через GORM
type GormCardStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormCardStore создает новый экземпляр GormCardStore
func NewGormCardStore(db *gorm.DB) *GormCardStore {
	return &GormCardStore{db: db}
}

// Save создает карту или обновляет все ее поля
func (s *GormCardStore) Save(ctx context.Context, card *models.Card) error {
	if err := s.db.WithContext(ctx).Save(card).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateCard
		}
		return fmt.Errorf("ошибка при сохранении карты: %w", err)
	}
	return nil
}

// FindByID возвращает карту по ID или ErrCardNotFound
func (s *GormCardStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	var card models.Card
	if err := s.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("ошибка при поиске карты: %w", err)
	}
	return &card, nil
}

// DeleteByID удаляет карту. Удаление отсутствующей карты не считается ошибкой.
func (s *GormCardStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&models.Card{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("ошибка при удалении карты: %w", err)
	}
	return nil
}

// FindAllByOwner возвращает страницу карт пользователя
func (s *GormCardStore) FindAllByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return s.FindAll(ctx, models.CardFilter{OwnerID: &ownerID}, page)
}

// FindAll возвращает страницу карт, удовлетворяющих фильтру
func (s *GormCardStore) FindAll(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error) {
	var total int64
	if err := s.db.WithContext(ctx).
		Model(&models.Card{}).
		Scopes(filterScopes(filter)...).
		Count(&total).Error; err != nil {
		return models.Page[models.Card]{}, fmt.Errorf("ошибка при подсчете карт: %w", err)
	}

	var cards []models.Card
	if total > int64(page.Offset()) {
		if err := s.db.WithContext(ctx).
			Scopes(filterScopes(filter)...).
			Scopes(paginate(page)).
			Find(&cards).Error; err != nil {
			return models.Page[models.Card]{}, fmt.Errorf("ошибка при получении карт: %w", err)
		}
	}

	return models.NewPage(cards, page, total), nil
}

// LockByIDs блокирует строки карт (SELECT ... FOR UPDATE) в порядке возрастания ID,
// чтобы встречные переводы не приводили к взаимной блокировке
func (s *GormCardStore) LockByIDs(ctx context.Context, ids ...uuid.UUID) error {
	if !s.inTx {
		return ErrNoTransaction
	}
	if len(ids) == 0 {
		return nil
	}

	sorted := uniqueSortedIDs(ids)
	var locked []models.Card
	if err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", sorted).
		Order("id").
		Find(&locked).Error; err != nil {
		return fmt.Errorf("ошибка при блокировке карт: %w", err)
	}
	return nil
}

// WithTransaction выполняет fn в транзакции базы данных
func (s *GormCardStore) WithTransaction(ctx context.Context, fn func(tx CardStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormCardStore{db: tx, inTx: true})
	})
}

// filterScopes переводит фильтр в условия запроса; пустые поля не ограничивают выборку
func filterScopes(filter models.CardFilter) []func(*gorm.DB) *gorm.DB {
	return []func(*gorm.DB) *gorm.DB{
		hasOwnerID(filter.OwnerID),
		hasStatus(filter.Status),
	}
}

func hasOwnerID(ownerID *uuid.UUID) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ownerID == nil {
			return db
		}
		return db.Where("owner_id = ?", *ownerID)
	}
}

func hasStatus(status *models.CardStatus) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if status == nil {
			return db
		}
		return db.Where("status = ?", *status)
	}
}

// paginate добавляет сортировку, смещение и лимит.
// Без явной сортировки порядок определяется датой создания.
func paginate(page models.PageRequest) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(page.Sort) == 0 {
			db = db.Order("created_at").Order("id")
		}
		for _, order := range page.Sort {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: order.Column}, Desc: order.Desc})
		}
		return db.Offset(page.Offset()).Limit(page.Size)
	}
}

func uniqueSortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	result := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].String() < result[j].String()
	})
	return result
}
