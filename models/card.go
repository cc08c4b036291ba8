package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CardStatus представляет статус карты
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"  // Активная
	CardStatusBlocked CardStatus = "BLOCKED" // Заблокированная
	CardStatusExpired CardStatus = "EXPIRED" // Истек срок действия
)

var cardStatusDescriptions = map[CardStatus]string{
	CardStatusActive:  "Активная",
	CardStatusBlocked: "Заблокированная",
	CardStatusExpired: "Истек срок действия",
}

// ParseCardStatus разбирает строковое значение статуса без учета регистра
func ParseCardStatus(value string) (CardStatus, bool) {
	status := CardStatus(strings.ToUpper(strings.TrimSpace(value)))
	return status, status.Valid()
}

// Valid проверяет, что статус входит в список допустимых
func (s CardStatus) Valid() bool {
	_, ok := cardStatusDescriptions[s]
	return ok
}

// Description возвращает человекочитаемое описание статуса
func (s CardStatus) Description() string {
	return cardStatusDescriptions[s]
}

// Card представляет банковскую карту пользователя.
// Номер карты хранится только в зашифрованном виде.
type Card struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OwnerID    uuid.UUID       `gorm:"column:owner_id;type:uuid;not null;index"`
	Number     string          `gorm:"column:card_number;not null"`
	NumberHMAC string          `gorm:"column:number_hmac;not null;uniqueIndex"`
	Status     CardStatus      `gorm:"column:status;type:varchar(20);not null;default:'ACTIVE'"`
	ExpiryDate time.Time       `gorm:"column:expiry_date;type:date;not null"`
	Balance    decimal.Decimal `gorm:"column:balance;type:numeric(15,2);not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at"`
	UpdatedAt  time.Time       `gorm:"column:updated_at"`
}

// TableName возвращает имя таблицы для модели Card
func (Card) TableName() string {
	return "cards"
}

// BeforeCreate генерирует идентификатор карты перед сохранением
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CardFilter задает необязательные условия выборки карт.
// nil означает отсутствие ограничения.
type CardFilter struct {
	OwnerID *uuid.UUID
	Status  *CardStatus
}
