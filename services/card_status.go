package services

import "bankcards/models"

// Переходы между статусами не ограничиваются: администратор может установить
// любой статус из любого, пользователь может только заблокировать свою карту.

// requireActive проверяет, что с картой можно проводить операции
func requireActive(card *models.Card) error {
	if card.Status != models.CardStatusActive {
		return newCardError(ErrNotActive, msgCardNotActive)
	}
	return nil
}
