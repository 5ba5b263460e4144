package repository

import (
	"context"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/abstracta/skywalking-copilot/internal/db"
	"github.com/abstracta/skywalking-copilot/internal/db/migrate"
	"github.com/abstracta/skywalking-copilot/internal/session/domain"
)

func TestSplitLocales(t *testing.T) {
	testCases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"en", []string{"en"}},
		{"es-UY,en", []string{"es-UY", "en"}},
	}
	for _, tc := range testCases {
		if got := splitLocales(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitLocales(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPostgresRepository(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	if err := migrate.Run(dsn, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, dsn)
	if err != nil {
		t.Skipf("Database connection failed (expected in test environment): %v", err)
	}
	defer conn.Close()
	repo := NewPostgresRepository(conn)

	missing, err := repo.GetByID(ctx, uuid.NewString())
	if err != nil || missing != nil {
		t.Fatalf("GetByID(unknown) = %v, %v; want nil, nil", missing, err)
	}

	s := &domain.Session{ID: uuid.NewString(), Locales: []string{"es-UY", "en"}, CreatedAt: time.Now().UTC()}
	if err := repo.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := repo.GetByID(ctx, s.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID = %v, %v", got, err)
	}
	if !reflect.DeepEqual(got.Locales, s.Locales) {
		t.Errorf("Locales = %v, want %v", got.Locales, s.Locales)
	}

	for i, text := range []string{"which services are slow?", "show the topology"} {
		q := &domain.Question{
			ID:        uuid.NewString(),
			SessionID: s.ID,
			Question:  text,
			Answer:    "answer",
			CreatedAt: s.CreatedAt.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
	}
	questions, err := repo.ListQuestions(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	if len(questions) != 2 || questions[0].Question != "which services are slow?" {
		t.Errorf("questions = %+v", questions)
	}
}
