package models

import (
	"fmt"
	"math"
	"strings"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// sortableColumns сопоставляет имена полей API с колонками таблицы cards
var sortableColumns = map[string]string{
	"id":          "id",
	"ownerId":     "owner_id",
	"owner_id":    "owner_id",
	"status":      "status",
	"expiryDate":  "expiry_date",
	"expiry_date": "expiry_date",
	"balance":     "balance",
	"createdAt":   "created_at",
	"created_at":  "created_at",
}

// SortOrder описывает сортировку по одному полю
type SortOrder struct {
	Column string
	Desc   bool
}

// PageRequest содержит параметры пагинации и сортировки
type PageRequest struct {
	Page int
	Size int
	Sort []SortOrder
}

// Page представляет одну страницу результата
type Page[T any] struct {
	Content       []T   `json:"content"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
}

// NewPageRequest создает запрос страницы с ограничением размера.
// Параметры сортировки задаются в виде "balance,desc".
func NewPageRequest(page, size int, sort ...string) (PageRequest, error) {
	if page < 0 {
		page = 0
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// Смещение page*size должно помещаться в int
	if page > math.MaxInt/size {
		return PageRequest{}, fmt.Errorf("номер страницы %d слишком большой", page)
	}

	req := PageRequest{Page: page, Size: size}
	for _, s := range sort {
		if strings.TrimSpace(s) == "" {
			continue
		}
		order, err := parseSortOrder(s)
		if err != nil {
			return PageRequest{}, err
		}
		req.Sort = append(req.Sort, order)
	}
	return req, nil
}

// Offset возвращает смещение первой записи страницы
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

func parseSortOrder(value string) (SortOrder, error) {
	parts := strings.Split(value, ",")
	column, ok := sortableColumns[strings.TrimSpace(parts[0])]
	if !ok {
		return SortOrder{}, fmt.Errorf("сортировка по полю %q не поддерживается", parts[0])
	}

	order := SortOrder{Column: column}
	if len(parts) > 1 {
		switch strings.ToLower(strings.TrimSpace(parts[1])) {
		case "asc":
		case "desc":
			order.Desc = true
		default:
			return SortOrder{}, fmt.Errorf("неверное направление сортировки %q", parts[1])
		}
	}
	return order, nil
}

// NewPage собирает страницу из содержимого и общего количества элементов
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
	}
}

// MapPage преобразует содержимое страницы, сохраняя параметры пагинации
func MapPage[T, R any](page Page[T], fn func(T) (R, error)) (Page[R], error) {
	content := make([]R, 0, len(page.Content))
	for _, item := range page.Content {
		mapped, err := fn(item)
		if err != nil {
			return Page[R]{}, err
		}
		content = append(content, mapped)
	}
	return Page[R]{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}, nil
}
