package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bankcards/middleware"
	"bankcards/models"
	"bankcards/services"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// CreateCardDTO тело запроса на создание карты
type CreateCardDTO struct {
	OwnerID    string           `json:"ownerId" validate:"required,uuid"`
	Number     string           `json:"number" validate:"required"`
	Status     string           `json:"status" validate:"required"`
	ExpiryDate string           `json:"expiryDate" validate:"required,datetime=2006-01-02"`
	Balance    *decimal.Decimal `json:"balance" validate:"required"`
}

// TransferDTO тело запроса на перевод. Пользователь определяется по токену.
type TransferDTO struct {
	FromCardID string           `json:"fromCardId" validate:"required,uuid"`
	ToCardID   string           `json:"toCardId" validate:"required,uuid"`
	Amount     *decimal.Decimal `json:"amount" validate:"required"`
}

// MessageResponse ответ операции, возвращающей сообщение
type MessageResponse struct {
	Message string `json:"message"`
}

// BalanceResponse ответ с балансом карты
type BalanceResponse struct {
	CardID  uuid.UUID `json:"cardId"`
	Balance string    `json:"balance"`
}

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	ErrorMessage string `json:"errorMessage"`
}

// CardController обрабатывает запросы, связанные с картами
type CardController struct {
	cardService *services.CardService
	validator   *validator.Validate
	log         logrus.FieldLogger
}

// NewCardController создает новый экземпляр CardController
func NewCardController(cardService *services.CardService, log logrus.FieldLogger) *CardController {
	return &CardController{
		cardService: cardService,
		validator:   validator.New(),
		log:         log,
	}
}

// RegisterAdminRoutes регистрирует маршруты администратора
func (c *CardController) RegisterAdminRoutes(r *mux.Router) {
	r.HandleFunc("/cards", c.CreateCard).Methods(http.MethodPost)
	r.HandleFunc("/cards", c.GetAllCards).Methods(http.MethodGet)
	r.HandleFunc("/cards/{cardId}/status", c.UpdateStatus).Methods(http.MethodPatch)
	r.HandleFunc("/cards/{cardId}", c.DeleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/metrics", c.GetMetrics).Methods(http.MethodGet)
}

// RegisterUserRoutes регистрирует маршруты пользователя
func (c *CardController) RegisterUserRoutes(r *mux.Router) {
	r.HandleFunc("/cards", c.GetUserCards).Methods(http.MethodGet)
	r.HandleFunc("/cards/transfer", c.Transfer).Methods(http.MethodPost)
	r.HandleFunc("/cards/{cardId}/block", c.BlockCard).Methods(http.MethodPatch)
	r.HandleFunc("/cards/{cardId}/balance", c.GetBalance).Methods(http.MethodGet)
}

// validateRequest валидирует DTO и возвращает ошибки валидации
func (c *CardController) validateRequest(dto interface{}) error {
	if err := c.validator.Struct(dto); err != nil {
		var validationErrors validator.ValidationErrors
		if !errors.As(err, &validationErrors) {
			return err
		}
		var errorMessages []string
		for _, e := range validationErrors {
			switch e.Tag() {
			case "required":
				errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
			case "uuid":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть UUID")
			case "datetime":
				errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате "+e.Param())
			default:
				errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
			}
		}
		return errors.New(strings.Join(errorMessages, "; "))
	}
	return nil
}

// CreateCard обрабатывает запрос на создание карты
func (c *CardController) CreateCard(w http.ResponseWriter, r *http.Request) {
	var dto CreateCardDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		c.log.WithError(err).Debug("Не удалось разобрать запрос на создание карты")
		writeError(w, http.StatusBadRequest, "Неверное тело запроса")
		return
	}

	if err := c.validateRequest(dto); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, ok := models.ParseCardStatus(dto.Status)
	if !ok {
		writeError(w, http.StatusBadRequest, "Недопустимый статус карты: "+dto.Status)
		return
	}

	// Формат значений уже проверен валидатором
	ownerID := uuid.MustParse(dto.OwnerID)
	expiryDate, _ := time.Parse("2006-01-02", dto.ExpiryDate)

	card, err := c.cardService.CreateCard(r.Context(), services.CreateCardRequest{
		OwnerID:    ownerID,
		Number:     dto.Number,
		Status:     status,
		ExpiryDate: expiryDate,
		Balance:    *dto.Balance,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, card)
}

// GetAllCards обрабатывает запрос на получение всех карт с фильтрами
func (c *CardController) GetAllCards(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var filter models.CardFilter
	if value := query.Get("ownerId"); value != "" {
		ownerID, err := uuid.Parse(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Параметр ownerId должен быть UUID")
			return
		}
		filter.OwnerID = &ownerID
	}
	if value := query.Get("status"); value != "" {
		status, ok := models.ParseCardStatus(value)
		if !ok {
			writeError(w, http.StatusBadRequest, "Недопустимый статус карты: "+value)
			return
		}
		filter.Status = &status
	}

	page, err := pageRequestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards, err := c.cardService.ListAllCards(r.Context(), filter, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// UpdateStatus обрабатывает запрос на изменение статуса карты
func (c *CardController) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	cardID, ok := cardIDFromPath(w, r)
	if !ok {
		return
	}

	value := r.URL.Query().Get("status")
	status, valid := models.ParseCardStatus(value)
	if !valid {
		writeError(w, http.StatusBadRequest, "Недопустимый статус карты: "+value)
		return
	}

	message, err := c.cardService.UpdateStatus(r.Context(), cardID, status)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// DeleteCard обрабатывает запрос на удаление карты
func (c *CardController) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, ok := cardIDFromPath(w, r)
	if !ok {
		return
	}

	message, err := c.cardService.DeleteCard(r.Context(), cardID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// GetMetrics возвращает снимок метрик сервиса
func (c *CardController) GetMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, c.cardService.Metrics().GetMetricsSnapshot())
}

// GetUserCards обрабатывает запрос на получение карт текущего пользователя
func (c *CardController) GetUserCards(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	page, err := pageRequestFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cards, err := c.cardService.ListUserCards(r.Context(), userID, page)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cards)
}

// BlockCard обрабатывает запрос пользователя на блокировку своей карты
func (c *CardController) BlockCard(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	cardID, ok := cardIDFromPath(w, r)
	if !ok {
		return
	}

	message, err := c.cardService.BlockOwnCard(r.Context(), cardID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// Transfer обрабатывает запрос на перевод между своими картами
func (c *CardController) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}

	var dto TransferDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		c.log.WithError(err).Debug("Не удалось разобрать запрос на перевод")
		writeError(w, http.StatusBadRequest, "Неверное тело запроса")
		return
	}

	if err := c.validateRequest(dto); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount := *dto.Amount
	if !amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "Сумма перевода должна быть больше нуля")
		return
	}
	if !amount.Equal(amount.Round(2)) {
		writeError(w, http.StatusBadRequest, "Сумма перевода должна содержать не более двух знаков после запятой")
		return
	}

	message, err := c.cardService.Transfer(r.Context(), services.TransferRequest{
		FromCardID: uuid.MustParse(dto.FromCardID),
		ToCardID:   uuid.MustParse(dto.ToCardID),
		Amount:     amount,
		UserID:     userID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

// GetBalance обрабатывает запрос баланса своей карты
func (c *CardController) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromRequest(w, r)
	if !ok {
		return
	}
	cardID, ok := cardIDFromPath(w, r)
	if !ok {
		return
	}

	balance, err := c.cardService.GetBalance(r.Context(), cardID, userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{CardID: cardID, Balance: balance.StringFixed(2)})
}

// Health сообщает, что сервис запущен
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func userIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Пользователь не аутентифицирован")
		return uuid.Nil, false
	}
	return userID, true
}

func cardIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	cardID, err := uuid.Parse(mux.Vars(r)["cardId"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Неверный идентификатор карты")
		return uuid.Nil, false
	}
	return cardID, true
}

// pageRequestFromQuery читает page, size и sort из строки запроса
func pageRequestFromQuery(r *http.Request) (models.PageRequest, error) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), 0)
	if err != nil {
		return models.PageRequest{}, errors.New("параметр page должен быть числом")
	}
	size, err := intParam(query.Get("size"), models.DefaultPageSize)
	if err != nil {
		return models.PageRequest{}, errors.New("параметр size должен быть числом")
	}

	// sort=balance,desc может повторяться
	return models.NewPageRequest(page, size, query["sort"]...)
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ
func writeServiceError(w http.ResponseWriter, err error) {
	var cardErr *services.CardError
	if !errors.As(err, &cardErr) {
		writeError(w, http.StatusInternalServerError, "Внутренняя ошибка сервера")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrNotOwned):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrNotActive),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrSameCardTransfer),
		errors.Is(err, services.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrCardAlreadyExists):
		status = http.StatusConflict
	}
	writeError(w, status, cardErr.Message)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{ErrorMessage: message})
}
