package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankcards/models"

	"github.com/google/uuid"
)

// MemoryCardStore хранит карты в памяти процесса.
// Транзакции выполняются последовательно под общим мьютексом и
// применяются к копии данных, которая фиксируется только при успехе.
type MemoryCardStore struct {
	mu    sync.Mutex
	cards cardSet
	now   func() time.Time
}

// NewMemoryCardStore создает пустое хранилище
func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{
		cards: cardSet{},
		now:   time.Now,
	}
}

func (s *MemoryCardStore) Save(ctx context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards.save(card, s.now())
}

func (s *MemoryCardStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards.find(id)
}

func (s *MemoryCardStore) DeleteByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cards, id)
	return nil
}

func (s *MemoryCardStore) FindAllByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return s.FindAll(ctx, models.CardFilter{OwnerID: &ownerID}, page)
}

func (s *MemoryCardStore) FindAll(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards.list(filter, page), nil
}

// LockByIDs вне транзакции не поддерживается, как и в GormCardStore
func (s *MemoryCardStore) LockByIDs(ctx context.Context, ids ...uuid.UUID) error {
	return ErrNoTransaction
}

func (s *MemoryCardStore) WithTransaction(ctx context.Context, fn func(tx CardStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{cards: s.cards.clone(), now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	s.cards = tx.cards
	return nil
}

// memoryTx представляет открытую транзакцию MemoryCardStore
type memoryTx struct {
	cards cardSet
	now   func() time.Time
}

func (tx *memoryTx) Save(ctx context.Context, card *models.Card) error {
	return tx.cards.save(card, tx.now())
}

func (tx *memoryTx) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return tx.cards.find(id)
}

func (tx *memoryTx) DeleteByID(ctx context.Context, id uuid.UUID) error {
	delete(tx.cards, id)
	return nil
}

func (tx *memoryTx) FindAllByOwner(ctx context.Context, ownerID uuid.UUID, page models.PageRequest) (models.Page[models.Card], error) {
	return tx.cards.list(models.CardFilter{OwnerID: &ownerID}, page), nil
}

func (tx *memoryTx) FindAll(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error) {
	return tx.cards.list(filter, page), nil
}

// LockByIDs ничего не делает: транзакция уже владеет хранилищем целиком
func (tx *memoryTx) LockByIDs(ctx context.Context, ids ...uuid.UUID) error {
	return nil
}

// WithTransaction внутри транзакции работает как точка сохранения
func (tx *memoryTx) WithTransaction(ctx context.Context, fn func(tx CardStore) error) error {
	nested := &memoryTx{cards: tx.cards.clone(), now: tx.now}
	if err := fn(nested); err != nil {
		return err
	}
	tx.cards = nested.cards
	return nil
}

// cardSet хранит копии карт, чтобы вызывающий код не мог изменить их в обход Save
type cardSet map[uuid.UUID]models.Card

func (c cardSet) clone() cardSet {
	copied := make(cardSet, len(c))
	for id, card := range c {
		copied[id] = card
	}
	return copied
}

func (c cardSet) save(card *models.Card, now time.Time) error {
	for id, existing := range c {
		if id != card.ID && existing.NumberHMAC == card.NumberHMAC {
			return ErrDuplicateCard
		}
	}

	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	card.UpdatedAt = now
	c[card.ID] = *card
	return nil
}

func (c cardSet) find(id uuid.UUID) (*models.Card, error) {
	card, ok := c[id]
	if !ok {
		return nil, ErrCardNotFound
	}
	return &card, nil
}

func (c cardSet) list(filter models.CardFilter, page models.PageRequest) models.Page[models.Card] {
	matched := make([]models.Card, 0, len(c))
	for _, card := range c {
		if filter.OwnerID != nil && card.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Status != nil && card.Status != *filter.Status {
			continue
		}
		matched = append(matched, card)
	}

	sortCards(matched, page.Sort)

	total := int64(len(matched))
	start := page.Offset()
	if start < 0 {
		start = 0
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}

	return models.NewPage(matched[start:end], page, total)
}

// sortCards повторяет порядок, который дает GormCardStore
func sortCards(cards []models.Card, orders []models.SortOrder) {
	if len(orders) == 0 {
		orders = []models.SortOrder{{Column: "created_at"}, {Column: "id"}}
	}
	sort.SliceStable(cards, func(i, j int) bool {
		for _, order := range orders {
			cmp := compareCards(cards[i], cards[j], order.Column)
			if cmp == 0 {
				continue
			}
			if order.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareCards(a, b models.Card, column string) int {
	switch column {
	case "owner_id":
		return compareStrings(a.OwnerID.String(), b.OwnerID.String())
	case "status":
		return compareStrings(string(a.Status), string(b.Status))
	case "expiry_date":
		return a.ExpiryDate.Compare(b.ExpiryDate)
	case "balance":
		return a.Balance.Cmp(b.Balance)
	case "created_at":
		return a.CreatedAt.Compare(b.CreatedAt)
	default:
		return compareStrings(a.ID.String(), b.ID.String())
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
