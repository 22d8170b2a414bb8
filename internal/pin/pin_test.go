package pin

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"treinos/api/internal/local"
)

func newTestGate(t *testing.T) (*Gate, local.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := local.NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("redis store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewGate(store), store
}

func TestInitAndVerifyDefault(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("init: %v", err)
	}

	ok, err := gate.Verify(ctx, "0109")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("default pin rejected")
	}

	unlocked, err := gate.Unlocked(ctx)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if !unlocked {
		t.Fatal("unlock state not recorded")
	}
}

func TestVerifyWrongCode(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("init: %v", err)
	}

	ok, err := gate.Verify(ctx, "9999")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("wrong pin accepted")
	}

	unlocked, err := gate.Unlocked(ctx)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if unlocked {
		t.Fatal("unlock state set after failed verify")
	}
}

func TestVerifyRejectsBadFormat(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, code := range []string{"", "12", "12345", "abcd", "01 9"} {
		ok, err := gate.Verify(ctx, code)
		if err != nil {
			t.Fatalf("verify %q: %v", code, err)
		}
		if ok {
			t.Fatalf("malformed code %q accepted", code)
		}
	}
}

func TestInitKeepsExistingPin(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := gate.SetPin(ctx, "4321"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("second init: %v", err)
	}

	ok, err := gate.Verify(ctx, "0109")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("init overwrote rotated pin")
	}
	ok, err = gate.Verify(ctx, "4321")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("rotated pin rejected")
	}
}

func TestSetPinRejectsBadFormat(t *testing.T) {
	gate, _ := newTestGate(t)

	err := gate.SetPin(context.Background(), "123")
	if !errors.Is(err, ErrBadFormat) {
		t.Fatalf("err = %v, want ErrBadFormat", err)
	}
}

func TestLockClearsUnlockState(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()

	if err := gate.Init(ctx, "0109"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := gate.Verify(ctx, "0109"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := gate.Lock(ctx); err != nil {
		t.Fatalf("lock: %v", err)
	}

	unlocked, err := gate.Unlocked(ctx)
	if err != nil {
		t.Fatalf("unlocked: %v", err)
	}
	if unlocked {
		t.Fatal("still unlocked after lock")
	}
}
