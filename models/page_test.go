package models

import (
	"errors"
	"math"
	"strconv"
	"testing"
)

func TestNewPageRequest(t *testing.T) {
	tests := []struct {
		name     string
		page     int
		size     int
		sort     []string
		wantPage int
		wantSize int
		wantSort []SortOrder
	}{
		{"defaults", 0, 0, nil, 0, DefaultPageSize, nil},
		{"negative page", -3, 10, nil, 0, 10, nil},
		{"size capped", 1, 1000, nil, 1, MaxPageSize, nil},
		{"sort asc by default", 0, 5, []string{"balance"}, 0, 5, []SortOrder{{Column: "balance"}}},
		{"sort desc", 0, 5, []string{"expiryDate,desc"}, 0, 5, []SortOrder{{Column: "expiry_date", Desc: true}}},
		{"empty sort ignored", 0, 5, []string{"", "status,ASC"}, 0, 5, []SortOrder{{Column: "status"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewPageRequest(tt.page, tt.size, tt.sort...)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if req.Page != tt.wantPage || req.Size != tt.wantSize {
				t.Fatalf("got page=%d size=%d", req.Page, req.Size)
			}
			if len(req.Sort) != len(tt.wantSort) {
				t.Fatalf("sort=%v want=%v", req.Sort, tt.wantSort)
			}
			for i := range req.Sort {
				if req.Sort[i] != tt.wantSort[i] {
					t.Fatalf("sort[%d]=%v want=%v", i, req.Sort[i], tt.wantSort[i])
				}
			}
		})
	}
}

func TestNewPageRequestRejectsUnknownSort(t *testing.T) {
	// Номер карты зашифрован, сортировать по нему нельзя
	if _, err := NewPageRequest(0, 10, "number"); err == nil {
		t.Fatal("expected error for unsupported field")
	}
	if _, err := NewPageRequest(0, 10, "balance,sideways"); err == nil {
		t.Fatal("expected error for bad direction")
	}
}

func TestNewPageRequestRejectsOverflowingPage(t *testing.T) {
	if _, err := NewPageRequest(math.MaxInt, MaxPageSize); err == nil {
		t.Fatal("expected error for page that overflows offset")
	}

	req, err := NewPageRequest(math.MaxInt/MaxPageSize, MaxPageSize)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Offset() < 0 {
		t.Fatalf("offset=%d must not be negative", req.Offset())
	}
}

func TestNewPage(t *testing.T) {
	req := PageRequest{Page: 1, Size: 2}

	page := NewPage([]int{3, 4}, req, 5)
	if page.TotalPages != 3 || page.TotalElements != 5 || page.Page != 1 || page.Size != 2 {
		t.Fatalf("page=%+v", page)
	}
	if req.Offset() != 2 {
		t.Fatalf("offset=%d want=2", req.Offset())
	}

	empty := NewPage[int](nil, req, 0)
	if empty.Content == nil || len(empty.Content) != 0 || empty.TotalPages != 0 {
		t.Fatalf("empty page=%+v", empty)
	}
}

func TestMapPage(t *testing.T) {
	page := NewPage([]int{1, 2}, PageRequest{Page: 0, Size: 2}, 4)

	mapped, err := MapPage(page, func(v int) (string, error) {
		return strconv.Itoa(v * 10), nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if mapped.Content[0] != "10" || mapped.Content[1] != "20" {
		t.Fatalf("content=%v", mapped.Content)
	}
	if mapped.TotalElements != 4 || mapped.TotalPages != 2 {
		t.Fatalf("mapped=%+v", mapped)
	}

	boom := errors.New("boom")
	if _, err := MapPage(page, func(int) (string, error) { return "", boom }); !errors.Is(err, boom) {
		t.Fatalf("err=%v want boom", err)
	}
}
