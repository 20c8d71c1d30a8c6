package cache

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	f, err := os.CreateTemp("", "blogit-cache-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func caches(t *testing.T) map[string]*Cache {
	t.Helper()
	mem, err := NewMemory(nil)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return map[string]*Cache{
		"memory": mem,
		"sqlite": New(testSQLite(t), nil),
	}
}

func TestRemember_HitAfterMiss(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			calls := 0
			fn := func(context.Context) ([]byte, error) {
				calls++
				return []byte("value"), nil
			}
			for i := 0; i < 3; i++ {
				v, err := c.Remember(ctx, "k", time.Hour, fn)
				if err != nil {
					t.Fatalf("Remember: %v", err)
				}
				if string(v) != "value" {
					t.Errorf("value = %q", v)
				}
			}
			if calls != 1 {
				t.Errorf("producer called %d times, want 1", calls)
			}
		})
	}
}

func TestRemember_ProducerErrorNotStored(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			if _, err := c.Remember(ctx, "k", 0, func(context.Context) ([]byte, error) { return nil, boom }); !errors.Is(err, boom) {
				t.Fatalf("err = %v, want boom", err)
			}
			calls := 0
			v, err := c.Remember(ctx, "k", 0, func(context.Context) ([]byte, error) {
				calls++
				return []byte("ok"), nil
			})
			if err != nil || string(v) != "ok" {
				t.Fatalf("Remember = %q, %v", v, err)
			}
			if calls != 1 {
				t.Error("failed producer result must not be stored")
			}
		})
	}
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			calls := 0
			fn := func(context.Context) ([]byte, error) {
				calls++
				return []byte("v"), nil
			}
			_, _ = c.Remember(ctx, "listing", time.Hour, fn)
			if err := c.Forget(ctx, "listing"); err != nil {
				t.Fatalf("Forget: %v", err)
			}
			_, _ = c.Remember(ctx, "listing", time.Hour, fn)
			if calls != 2 {
				t.Errorf("producer called %d times, want 2", calls)
			}
		})
	}
}

func TestSQLite_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := testSQLite(t)
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "ttl", []byte("a"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "forever", []byte("b"), NoExpiry); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "ttl"); !ok {
		t.Fatal("fresh entry should hit")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := store.Get(ctx, "ttl"); ok {
		t.Error("expired entry should miss")
	}
	if v, ok, _ := store.Get(ctx, "forever"); !ok || string(v) != "b" {
		t.Error("entry without ttl should never expire")
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewMemory(nil)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	calls := map[string]int{}
	fn := func(key string) Producer {
		return func(context.Context) ([]byte, error) {
			calls[key]++
			return []byte(key), nil
		}
	}

	_, _ = c.Remember(ctx, "ttl", 30*time.Millisecond, fn("ttl"))
	_, _ = c.Remember(ctx, "forever", NoExpiry, fn("forever"))
	time.Sleep(100 * time.Millisecond)
	_, _ = c.Remember(ctx, "ttl", 30*time.Millisecond, fn("ttl"))
	_, _ = c.Remember(ctx, "forever", NoExpiry, fn("forever"))

	if calls["ttl"] != 2 {
		t.Errorf("expired entry produced %d times, want 2", calls["ttl"])
	}
	if calls["forever"] != 1 {
		t.Errorf("entry without ttl produced %d times, want 1", calls["forever"])
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	f, err := os.CreateTemp("", "blogit-cache-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	s, err := OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.Set(ctx, "doc:abc", []byte("payload"), NoExpiry); err != nil {
		t.Fatalf("Set: %v", err)
	}
	s.Close()

	s, err = OpenSQLite(f.Name())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	v, ok, err := s.Get(ctx, "doc:abc")
	if err != nil || !ok || string(v) != "payload" {
		t.Errorf("Get = %q, %v, %v", v, ok, err)
	}
}

func TestSQLite_Purge(t *testing.T) {
	ctx := context.Background()
	s := testSQLite(t)
	now := time.Now()
	s.now = func() time.Time { return now }
	_ = s.Set(ctx, "a", []byte("1"), time.Second)
	_ = s.Set(ctx, "b", []byte("2"), NoExpiry)
	now = now.Add(time.Minute)
	n, err := s.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
}

func TestRemember_ConcurrentMissesShareProducer(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			release := make(chan struct{})
			fn := func(context.Context) ([]byte, error) {
				calls.Add(1)
				<-release
				return []byte("v"), nil
			}

			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = c.Remember(context.Background(), "shared", 0, fn)
				}()
			}
			time.Sleep(50 * time.Millisecond)
			close(release)
			wg.Wait()

			if got := calls.Load(); got != 1 {
				t.Errorf("producer called %d times, want 1", got)
			}
		})
	}
}

func TestRemember_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	for name, c := range caches(t) {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			started := make(chan struct{})
			release := make(chan struct{})
			producerErr := make(chan error, 1)
			fn := func(ctx context.Context) ([]byte, error) {
				if calls.Add(1) == 1 {
					close(started)
				}
				<-release
				producerErr <- ctx.Err()
				return []byte("v"), nil
			}

			firstCtx, cancel := context.WithCancel(context.Background())
			first := make(chan error, 1)
			go func() {
				_, err := c.Remember(firstCtx, "shared", time.Hour, fn)
				first <- err
			}()
			<-started

			type result struct {
				v   []byte
				err error
			}
			second := make(chan result, 1)
			go func() {
				v, err := c.Remember(context.Background(), "shared", time.Hour, fn)
				second <- result{v, err}
			}()
			time.Sleep(20 * time.Millisecond)

			cancel()
			if err := <-first; !errors.Is(err, context.Canceled) {
				t.Errorf("first caller err = %v, want context.Canceled", err)
			}
			close(release)

			got := <-second
			if got.err != nil || string(got.v) != "v" {
				t.Fatalf("waiter got %q, %v", got.v, got.err)
			}
			if err := <-producerErr; err != nil {
				t.Errorf("producer ctx err = %v, want it detached from the first caller", err)
			}
			if n := calls.Load(); n != 1 {
				t.Errorf("producer called %d times, want 1", n)
			}
		})
	}
}

func TestRememberJSON(t *testing.T) {
	type payload struct {
		Name string
		N    int
	}
	c, err := NewMemory(nil)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	calls := 0
	fn := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "x", N: 2}, nil
	}
	for i := 0; i < 2; i++ {
		got, err := RememberJSON(context.Background(), c, "p", 0, fn)
		if err != nil {
			t.Fatalf("RememberJSON: %v", err)
		}
		if got.Name != "x" || got.N != 2 {
			t.Errorf("got %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d", calls)
	}
}
