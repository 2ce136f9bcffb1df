package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"saledesk/backend/internal/domain"
	"saledesk/backend/internal/store"
	"saledesk/backend/internal/wizard"
)

func TestSaveSessionRejectsStaleVersion(t *testing.T) {
	s := New()
	ctx := context.Background()

	created, err := s.CreateSession(ctx, wizard.New("wiz_a", "seller", time.Now()))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if created.Version != 1 {
		t.Fatalf("expected version 1, got %d", created.Version)
	}

	first := *created
	first.Sale.SaleID = 42
	saved, err := s.SaveSession(ctx, first)
	if err != nil {
		t.Fatalf("save session: %v", err)
	}
	if saved.Version != 2 {
		t.Fatalf("expected version 2, got %d", saved.Version)
	}

	stale := *created
	stale.Sale.SaleID = 43
	if _, err := s.SaveSession(ctx, stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	found, err := s.FindSessionBySale(ctx, 42)
	if err != nil {
		t.Fatalf("find by sale: %v", err)
	}
	if found.ID != "wiz_a" {
		t.Fatalf("unexpected session %s", found.ID)
	}
}

func TestSessionsAreCopiedOnReadAndWrite(t *testing.T) {
	s := New()
	ctx := context.Background()

	session := wizard.New("wiz_b", "seller", time.Now())
	session.Sale.Installments = []domain.Installment{{Number: 0, Amount: 100, IsInicial: true}}
	if _, err := s.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	session.Sale.Installments[0].Amount = 1

	got, err := s.GetSession(ctx, "wiz_b")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Sale.Installments[0].Amount != 100 {
		t.Fatalf("stored session was mutated through caller slice")
	}
}

func TestCreateSessionRejectsSecondSessionForSameSale(t *testing.T) {
	s := New()
	ctx := context.Background()

	first := wizard.New("wiz_c", "seller", time.Now())
	first.Sale.SaleID = 77
	if _, err := s.CreateSession(ctx, first); err != nil {
		t.Fatalf("create session: %v", err)
	}

	second := wizard.New("wiz_d", "other", time.Now())
	second.Sale.SaleID = 77
	if _, err := s.CreateSession(ctx, second); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestSaveSessionRejectsSaleHeldByAnotherSession(t *testing.T) {
	s := New()
	ctx := context.Background()

	holder := wizard.New("wiz_e", "seller", time.Now())
	holder.Sale.SaleID = 88
	if _, err := s.CreateSession(ctx, holder); err != nil {
		t.Fatalf("create holder: %v", err)
	}

	other, err := s.CreateSession(ctx, wizard.New("wiz_f", "other", time.Now()))
	if err != nil {
		t.Fatalf("create other: %v", err)
	}
	claim := *other
	claim.Sale.SaleID = 88
	if _, err := s.SaveSession(ctx, claim); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	kept, err := s.GetSession(ctx, "wiz_f")
	if err != nil {
		t.Fatalf("get other: %v", err)
	}
	if kept.Sale.SaleID != 0 || kept.Version != other.Version {
		t.Fatalf("rejected save changed the stored session: %+v", kept)
	}

	again, err := s.GetSession(ctx, "wiz_e")
	if err != nil {
		t.Fatalf("get holder: %v", err)
	}
	if _, err := s.SaveSession(ctx, *again); err != nil {
		t.Fatalf("holder should keep saving its own sale: %v", err)
	}
}

func TestListSessionsFiltersByOperator(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	for i, op := range []string{"ana", "luis", "ana"} {
		session := wizard.New(string(rune('a'+i))+"-wiz", op, now.Add(time.Duration(i)*time.Second))
		if _, err := s.CreateSession(ctx, session); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}

	sessions, err := s.ListSessions(ctx, "ana", 10)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "c-wiz" {
		t.Fatalf("expected newest first, got %s", sessions[0].ID)
	}

	if err := s.DeleteSession(ctx, "c-wiz"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := s.GetSession(ctx, "c-wiz"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSeededUsersHaveHashedPasswords(t *testing.T) {
	s := NewSeeded()
	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seed users, got %d", len(users))
	}
	for _, u := range users {
		if u.Password == "admin123" || u.Password == "seller123" {
			t.Fatalf("seed password for %s stored in plain text", u.Username)
		}
	}
}
