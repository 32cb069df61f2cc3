package redisstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rc, err := New(ctx, mr.Addr(), WithPoolSize(4), WithTimeouts(500*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGetDel(t *testing.T) {
	rc, _ := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "obras:prefs:ana", []byte(`{"base_map":"osm"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := rc.Get(ctx, "obras:prefs:ana")
	if err != nil || !ok || string(got) != `{"base_map":"osm"}` {
		t.Fatalf("Get = %q ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := rc.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get missing ok=%v err=%v want false,nil", ok, err)
	}
	if err := rc.Del(ctx, "obras:prefs:ana"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := rc.Get(ctx, "obras:prefs:ana"); ok {
		t.Fatal("key still present after Del")
	}
	if err := rc.Del(ctx); err != nil {
		t.Fatalf("Del with no keys: %v", err)
	}
}

func TestTTL(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()

	if err := rc.Set(ctx, "raw", []byte("v"), 2*time.Second); err != nil {
		t.Fatal(err)
	}
	if err := rc.Set(ctx, "forever", []byte("x"), 0); err != nil {
		t.Fatal(err)
	}
	mr.FastForward(time.Hour)
	if _, ok, _ := rc.Get(ctx, "raw"); ok {
		t.Fatal("expired key still served")
	}
	if _, ok, _ := rc.Get(ctx, "forever"); !ok {
		t.Fatal("key without ttl expired")
	}
}

func TestDelPrefix(t *testing.T) {
	rc, mr := newMini(t)
	ctx := context.Background()
	for i := range scanBatch + 5 {
		mr.Set(fmt.Sprintf("obras:raw:file:f%d", i), "x")
	}
	mr.Set("obras:raw:s3:keep", "x")
	mr.Set("obras:prefs:ana", "x")

	n, err := rc.DelPrefix(ctx, "obras:raw:file:")
	if err != nil {
		t.Fatal(err)
	}
	if n != scanBatch+5 {
		t.Fatalf("deleted=%d want %d", n, scanBatch+5)
	}
	if !mr.Exists("obras:raw:s3:keep") || !mr.Exists("obras:prefs:ana") {
		t.Fatal("keys outside the prefix were removed")
	}
	if _, err := rc.DelPrefix(ctx, ""); err == nil {
		t.Fatal("empty prefix accepted")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := New(ctx, "127.0.0.1:1"); err == nil {
		t.Fatal("expected ping error for closed port")
	}
}

func TestCanceledContext(t *testing.T) {
	rc, _ := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := rc.Set(ctx, "k", []byte("v"), time.Second); err == nil {
		t.Fatal("expected error on Set with canceled context")
	}
	if _, _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatal("expected error on Get with canceled context")
	}
	if err := rc.Ping(ctx); err == nil {
		t.Fatal("expected error on Ping with canceled context")
	}
}
