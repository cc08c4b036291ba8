package database

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bankcards/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newDryRunDB возвращает GORM без подключения к серверу: запросы только собираются.
// Последний собранный SQL попадает в *captured.
func newDryRunDB(t *testing.T) (*gorm.DB, *string) {
	t.Helper()
	db, err := gorm.Open(postgres.Open("host=localhost user=postgres dbname=test sslmode=disable"), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               logger.Discard,
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}

	captured := new(string)
	capture := func(tx *gorm.DB) {
		*captured = tx.Statement.SQL.String()
	}
	if err := db.Callback().Query().After("gorm:query").Register("test:capture_query", capture); err != nil {
		t.Fatal(err)
	}
	return db, captured
}

func TestGormFilterAndPagination(t *testing.T) {
	db, captured := newDryRunDB(t)

	owner := uuid.New()
	status := models.CardStatusActive
	page, err := models.NewPageRequest(1, 10, "balance,desc")
	if err != nil {
		t.Fatal(err)
	}

	var cards []models.Card
	stmt := db.Model(&models.Card{}).
		Scopes(filterScopes(models.CardFilter{OwnerID: &owner, Status: &status})...).
		Scopes(paginate(page)).
		Find(&cards).Statement

	sql := *captured
	for _, want := range []string{`FROM "cards"`, "owner_id = $1", "status = $2", `ORDER BY "balance" DESC`, "LIMIT", "OFFSET"} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql %q does not contain %q", sql, want)
		}
	}
	if len(stmt.Vars) < 2 || stmt.Vars[0] != owner || stmt.Vars[1] != status {
		t.Fatalf("vars=%v", stmt.Vars)
	}
}

func TestGormEmptyFilterDefaultOrder(t *testing.T) {
	db, captured := newDryRunDB(t)

	page, _ := models.NewPageRequest(0, 20)
	var cards []models.Card
	db.Scopes(filterScopes(models.CardFilter{})...).Scopes(paginate(page)).Find(&cards)

	sql := *captured
	if strings.Contains(sql, "WHERE") {
		t.Errorf("empty filter must not add conditions: %q", sql)
	}
	if !strings.Contains(sql, "ORDER BY created_at,id") {
		t.Errorf("default order missing: %q", sql)
	}
}

func TestGormFindAllCountsWithFilter(t *testing.T) {
	db, captured := newDryRunDB(t)
	store := NewGormCardStore(db)

	owner := uuid.New()
	page, _ := models.NewPageRequest(0, 20)
	result, err := store.FindAllByOwner(context.Background(), owner, page)
	if err != nil {
		t.Fatal(err)
	}

	sql := *captured
	if !strings.Contains(sql, "count(*)") || !strings.Contains(sql, "owner_id = $1") {
		t.Errorf("unexpected count query: %q", sql)
	}
	if result.Content == nil || len(result.Content) != 0 {
		t.Fatalf("content=%v", result.Content)
	}
}

func TestGormLockByIDs(t *testing.T) {
	db, captured := newDryRunDB(t)

	if err := NewGormCardStore(db).LockByIDs(context.Background(), uuid.New()); !errors.Is(err, ErrNoTransaction) {
		t.Fatalf("err=%v want ErrNoTransaction", err)
	}

	tx := &GormCardStore{db: db, inTx: true}
	a, b := uuid.New(), uuid.New()
	if err := tx.LockByIDs(context.Background(), a, b, a); err != nil {
		t.Fatal(err)
	}

	sql := *captured
	for _, want := range []string{"id IN ($1,$2)", "ORDER BY id", "FOR UPDATE"} {
		if !strings.Contains(sql, want) {
			t.Errorf("sql %q does not contain %q", sql, want)
		}
	}
}

func TestUniqueSortedIDs(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	got := uniqueSortedIDs([]uuid.UUID{a, b, a})
	if len(got) != 2 || got[0] != b || got[1] != a {
		t.Fatalf("got=%v", got)
	}
}
