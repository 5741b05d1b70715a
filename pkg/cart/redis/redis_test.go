package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"cartflow/pkg/cart"
)

func TestRead(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 0)
	ctx := context.Background()

	mock.ExpectGet(cart.DefaultKey).RedisNil()
	if _, err := s.Read(ctx, cart.DefaultKey); !errors.Is(err, cart.ErrSlotEmpty) {
		t.Errorf("expected ErrSlotEmpty, got %v", err)
	}

	mock.ExpectGet(cart.DefaultKey).SetVal(`{"version":1,"items":[]}`)
	got, err := s.Read(ctx, cart.DefaultKey)
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if got != `{"version":1,"items":[]}` {
		t.Errorf("unexpected value %q", got)
	}

	mock.ExpectGet(cart.DefaultKey).SetErr(errors.New("READONLY"))
	if _, err := s.Read(ctx, cart.DefaultKey); err == nil || errors.Is(err, cart.ErrSlotEmpty) {
		t.Errorf("expected backend error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWriteWithTTL(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 24*time.Hour)

	mock.ExpectSet("cart:s1", "blob", 24*time.Hour).SetVal("OK")
	if err := s.Write(context.Background(), "cart:s1", "blob"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestDelete(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := New(db, 0)
	ctx := context.Background()

	mock.ExpectDel("k").SetVal(0)
	if err := s.Delete(ctx, "k"); !errors.Is(err, cart.ErrSlotEmpty) {
		t.Errorf("expected ErrSlotEmpty, got %v", err)
	}
	mock.ExpectDel("k").SetVal(1)
	if err := s.Delete(ctx, "k"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
