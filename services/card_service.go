package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bankcards/database"
	"bankcards/models"
	"bankcards/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

var (
	cardNumberPattern   = regexp.MustCompile(`^[0-9]{13,19}$`)
	cardNumberSeparator = strings.NewReplacer(" ", "", "-", "")
)

// CreateCardRequest представляет данные для создания карты
type CreateCardRequest struct {
	OwnerID    uuid.UUID         `json:"ownerId" validate:"required"`
	Number     string            `json:"number" validate:"required,cardnumber"`
	Status     models.CardStatus `json:"status" validate:"required,oneof=ACTIVE BLOCKED EXPIRED"`
	ExpiryDate time.Time         `json:"expiryDate" validate:"required"`
	Balance    decimal.Decimal   `json:"balance"`
}

// TransferRequest представляет данные для перевода между картами пользователя.
// Положительность суммы проверяется на уровне транспорта.
type TransferRequest struct {
	FromCardID uuid.UUID
	ToCardID   uuid.UUID
	Amount     decimal.Decimal
	UserID     uuid.UUID
}

// CardResponse представляет данные карты для ответа с маскированным номером
type CardResponse struct {
	ID         uuid.UUID         `json:"id"`
	OwnerID    uuid.UUID         `json:"ownerId"`
	Number     string            `json:"number"`
	Status     models.CardStatus `json:"status"`
	ExpiryDate string            `json:"expiryDate"`
	Balance    string            `json:"balance"`
}

// Notifier получает уведомления о значимых для безопасности событиях
type Notifier interface {
	NotifyCardBlocked(ctx context.Context, cardID, userID uuid.UUID) error
}

// CardService предоставляет операции с картами: выпуск, смену статуса,
// переводы между своими картами и просмотр с маскированием номеров
type CardService struct {
	store     database.CardStore
	cipher    utils.TextCipher
	hmacKey   []byte
	validator *validator.Validate
	notifier  Notifier
	metrics   *utils.Metrics
	log       logrus.FieldLogger
}

// Option настраивает необязательные зависимости CardService
type Option func(*CardService)

// WithNotifier подключает отправку уведомлений
func WithNotifier(n Notifier) Option {
	return func(s *CardService) {
		s.notifier = n
	}
}

// WithMetrics подключает сбор метрик
func WithMetrics(m *utils.Metrics) Option {
	return func(s *CardService) {
		s.metrics = m
	}
}

// NewCardService создает новый экземпляр CardService
func NewCardService(store database.CardStore, cipher utils.TextCipher, hmacKey []byte, log logrus.FieldLogger, opts ...Option) *CardService {
	validate := validator.New()

	// Номер карты: от 13 до 19 цифр
	if err := validate.RegisterValidation("cardnumber", func(fl validator.FieldLevel) bool {
		return cardNumberPattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("не удалось зарегистрировать правило cardnumber: %v", err))
	}

	s := &CardService{
		store:     store,
		cipher:    cipher,
		hmacKey:   hmacKey,
		validator: validate,
		metrics:   utils.NewMetrics(),
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCard выпускает новую карту. Номер шифруется до сохранения.
func (s *CardService) CreateCard(ctx context.Context, req CreateCardRequest) (*CardResponse, error) {
	req.Number = cardNumberSeparator.Replace(req.Number)

	if err := s.validateCreateRequest(req); err != nil {
		return nil, s.finish(utils.CardOperationCreate, err)
	}

	// Шифруем номер карты
	encrypted, err := s.cipher.Encrypt(req.Number)
	if err != nil {
		return nil, s.finish(utils.CardOperationCreate, fmt.Errorf("не удалось зашифровать номер карты: %w", err))
	}

	card := &models.Card{
		OwnerID:    req.OwnerID,
		Number:     encrypted,
		NumberHMAC: utils.CardFingerprint(req.Number, s.hmacKey),
		Status:     req.Status,
		ExpiryDate: truncateToDate(req.ExpiryDate),
		Balance:    req.Balance,
	}

	if err := s.store.Save(ctx, card); err != nil {
		if errors.Is(err, database.ErrDuplicateCard) {
			s.log.WithField("owner_id", req.OwnerID).Warn(msgCardAlreadyExists)
			return nil, s.finish(utils.CardOperationCreate, newCardError(ErrCardAlreadyExists, msgCardAlreadyExists))
		}
		return nil, s.finish(utils.CardOperationCreate, err)
	}

	s.log.WithField("card_id", card.ID).Infof("Карта с ID = %s была создана", card.ID)
	s.finish(utils.CardOperationCreate, nil)

	return toResponse(card, utils.MaskCardNumber(req.Number)), nil
}

// UpdateStatus устанавливает карте любой допустимый статус
func (s *CardService) UpdateStatus(ctx context.Context, cardID uuid.UUID, status models.CardStatus) (string, error) {
	if !status.Valid() {
		return "", s.finish(utils.CardOperationStatus, newCardError(ErrValidation, "Недопустимый статус карты: %s", status))
	}

	err := s.store.WithTransaction(ctx, func(tx database.CardStore) error {
		if err := tx.LockByIDs(ctx, cardID); err != nil {
			return err
		}
		card, err := s.getCard(ctx, tx, cardID)
		if err != nil {
			return err
		}
		card.Status = status
		return tx.Save(ctx, card)
	})
	if err != nil {
		return "", s.finish(utils.CardOperationStatus, err)
	}

	message := fmt.Sprintf("Статус карты с ID = %s успешно изменен на %s", cardID, status)
	s.log.WithField("card_id", cardID).Info(message)
	s.finish(utils.CardOperationStatus, nil)
	return message, nil
}

// DeleteCard удаляет карту. Повторное удаление не является ошибкой.
func (s *CardService) DeleteCard(ctx context.Context, cardID uuid.UUID) (string, error) {
	if err := s.store.DeleteByID(ctx, cardID); err != nil {
		return "", s.finish(utils.CardOperationDelete, err)
	}

	s.log.WithField("card_id", cardID).Infof("Карта с ID=%s была удалена", cardID)
	s.finish(utils.CardOperationDelete, nil)
	return "Карта была удалена", nil
}

// ListAllCards возвращает страницу карт с необязательной фильтрацией по владельцу и статусу
func (s *CardService) ListAllCards(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[CardResponse], error) {
	cards, err := s.store.FindAll(ctx, filter, page)
	if err != nil {
		return models.Page[CardResponse]{}, s.finish(utils.CardOperationList, err)
	}
	return s.maskPage(cards)
}

// ListUserCards возвращает страницу карт пользователя
func (s *CardService) ListUserCards(ctx context.Context, userID uuid.UUID, page models.PageRequest) (models.Page[CardResponse], error) {
	cards, err := s.store.FindAllByOwner(ctx, userID, page)
	if err != nil {
		return models.Page[CardResponse]{}, s.finish(utils.CardOperationList, err)
	}
	return s.maskPage(cards)
}

// BlockOwnCard блокирует карту по запросу владельца.
// Блокировка уже заблокированной или истекшей карты не считается ошибкой.
func (s *CardService) BlockOwnCard(ctx context.Context, cardID, userID uuid.UUID) (string, error) {
	err := s.store.WithTransaction(ctx, func(tx database.CardStore) error {
		if err := tx.LockByIDs(ctx, cardID); err != nil {
			return err
		}
		card, err := s.ensureOwned(ctx, tx, cardID, userID)
		if err != nil {
			return err
		}
		card.Status = models.CardStatusBlocked
		return tx.Save(ctx, card)
	})
	if err != nil {
		return "", s.finish(utils.CardOperationBlock, err)
	}

	s.log.WithFields(logrus.Fields{"card_id": cardID, "user_id": userID}).
		Infof("Пользователь с ID = %s заблокировал свою карту с ID = %s", userID, cardID)
	s.finish(utils.CardOperationBlock, nil)

	// Уведомление не влияет на результат операции
	if s.notifier != nil {
		if err := s.notifier.NotifyCardBlocked(ctx, cardID, userID); err != nil {
			s.log.WithError(err).WithField("card_id", cardID).Warn("Ошибка отправки уведомления о блокировке карты")
		}
	}

	return "Карта была заблокирована по вашему запросу", nil
}

// Transfer переводит средства между двумя картами одного пользователя.
// Проверки выполняются в порядке: владение картой отправителя, владение картой
// получателя, активность обеих карт, достаточность средств, совпадение карт.
// Списание и зачисление сохраняются в одной транзакции.
func (s *CardService) Transfer(ctx context.Context, req TransferRequest) (string, error) {
	err := s.store.WithTransaction(ctx, func(tx database.CardStore) error {
		if err := tx.LockByIDs(ctx, req.FromCardID, req.ToCardID); err != nil {
			return err
		}

		fromCard, err := s.ensureOwned(ctx, tx, req.FromCardID, req.UserID)
		if err != nil {
			return err
		}
		toCard, err := s.ensureOwned(ctx, tx, req.ToCardID, req.UserID)
		if err != nil {
			return err
		}

		if err := requireActive(fromCard); err != nil {
			return err
		}
		if err := requireActive(toCard); err != nil {
			return err
		}

		// Проверяем достаточность средств
		if fromCard.Balance.LessThan(req.Amount) {
			s.log.WithField("card_id", fromCard.ID).Warn(msgInsufficientBalance)
			return newCardError(ErrInsufficientBalance, msgInsufficientBalance)
		}

		// Проверяем, что карты разные
		if req.FromCardID == req.ToCardID {
			message := fmt.Sprintf(msgSameCardTransfer, req.UserID)
			s.log.WithField("user_id", req.UserID).Warn(message)
			return newCardError(ErrSameCardTransfer, "%s", message)
		}

		fromCard.Balance = fromCard.Balance.Sub(req.Amount)
		toCard.Balance = toCard.Balance.Add(req.Amount)

		if err := tx.Save(ctx, fromCard); err != nil {
			return err
		}
		return tx.Save(ctx, toCard)
	})
	if err != nil {
		return "", s.finish(utils.CardOperationTransfer, err)
	}

	s.log.WithFields(logrus.Fields{
		"user_id":      req.UserID,
		"from_card_id": req.FromCardID,
		"to_card_id":   req.ToCardID,
	}).Infof("Пользователь с ID = %s перевел %s рублей с карты с ID = %s на карту с ID = %s",
		req.UserID, req.Amount.StringFixed(2), req.FromCardID, req.ToCardID)
	s.finish(utils.CardOperationTransfer, nil)

	return "Перевод прошёл успешно", nil
}

// GetBalance возвращает баланс карты ее владельцу
func (s *CardService) GetBalance(ctx context.Context, cardID, userID uuid.UUID) (decimal.Decimal, error) {
	card, err := s.ensureOwned(ctx, s.store, cardID, userID)
	if err != nil {
		return decimal.Decimal{}, s.finish(utils.CardOperationBalance, err)
	}
	s.finish(utils.CardOperationBalance, nil)
	return card.Balance, nil
}

// Metrics возвращает метрики сервиса
func (s *CardService) Metrics() *utils.Metrics {
	return s.metrics
}

// ensureOwned загружает карту и проверяет, что она принадлежит пользователю
func (s *CardService) ensureOwned(ctx context.Context, store database.CardStore, cardID, userID uuid.UUID) (*models.Card, error) {
	card, err := s.getCard(ctx, store, cardID)
	if err != nil {
		return nil, err
	}
	if card.OwnerID != userID {
		message := fmt.Sprintf(msgCardNotOwned, userID, cardID)
		s.log.WithFields(logrus.Fields{"card_id": cardID, "user_id": userID}).Warn(message)
		return nil, newCardError(ErrNotOwned, "%s", message)
	}
	return card, nil
}

// getCard загружает карту и превращает ее отсутствие в ErrNotFound
func (s *CardService) getCard(ctx context.Context, store database.CardStore, cardID uuid.UUID) (*models.Card, error) {
	card, err := store.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, database.ErrCardNotFound) {
			message := fmt.Sprintf(msgCardNotFound, cardID)
			s.log.WithField("card_id", cardID).Warn(message)
			return nil, newCardError(ErrNotFound, "%s", message)
		}
		return nil, err
	}
	return card, nil
}

// maskPage расшифровывает и маскирует номера карт на странице
func (s *CardService) maskPage(cards models.Page[models.Card]) (models.Page[CardResponse], error) {
	page, err := models.MapPage(cards, func(card models.Card) (CardResponse, error) {
		number, err := s.cipher.Decrypt(card.Number)
		if err != nil {
			return CardResponse{}, fmt.Errorf("не удалось расшифровать номер карты %s: %w", card.ID, err)
		}
		return *toResponse(&card, utils.MaskCardNumber(number)), nil
	})
	if err != nil {
		return models.Page[CardResponse]{}, s.finish(utils.CardOperationList, err)
	}
	s.finish(utils.CardOperationList, nil)
	return page, nil
}

// validateCreateRequest валидирует запрос на создание карты
func (s *CardService) validateCreateRequest(req CreateCardRequest) error {
	var messages []string

	if err := s.validator.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				messages = append(messages, "поле "+e.Field()+" обязательно")
			case "cardnumber":
				messages = append(messages, "поле "+e.Field()+" должно содержать от 13 до 19 цифр")
			case "oneof":
				messages = append(messages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
			default:
				messages = append(messages, "поле "+e.Field()+" заполнено неверно")
			}
		}
	}

	if !req.Balance.Equal(req.Balance.Round(2)) {
		messages = append(messages, "поле Balance должно содержать не более двух знаков после запятой")
	}

	if len(messages) > 0 {
		return newCardError(ErrValidation, "%s", strings.Join(messages, "; "))
	}
	return nil
}

// finish приводит ошибку к CardError, скрывая внутренние сбои, и учитывает метрики
func (s *CardService) finish(op utils.CardOperation, err error) error {
	if err == nil {
		s.metrics.RecordCardOperation(op, "")
		return nil
	}

	var cardErr *CardError
	if !errors.As(err, &cardErr) {
		s.log.WithError(err).WithField("operation", op).Error("Внутренняя ошибка при работе с картами")
		cardErr = internalError()
		s.metrics.RecordCriticalError(ErrorKind(cardErr))
		return cardErr
	}
	s.metrics.RecordCardOperation(op, ErrorKind(cardErr))
	return cardErr
}

func toResponse(card *models.Card, maskedNumber string) *CardResponse {
	return &CardResponse{
		ID:         card.ID,
		OwnerID:    card.OwnerID,
		Number:     maskedNumber,
		Status:     card.Status,
		ExpiryDate: card.ExpiryDate.Format(dateLayout),
		Balance:    card.Balance.StringFixed(2),
	}
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
