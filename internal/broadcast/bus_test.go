package broadcast

import (
	"bytes"
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSend_NoSubscribers_ReturnsError(t *testing.T) {
	b := New(4)
	if err := b.Send([]byte("x")); err != ErrNoSubscribers {
		t.Fatalf("got %v, want ErrNoSubscribers", err)
	}
}

func TestFanOut_ZeroLag_SameOrderForAllSubscribers(t *testing.T) {
	b := New(10)
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Release()
	defer s2.Release()

	chunks := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, c := range chunks {
		if err := b.Send(c); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	ctx := context.Background()
	for _, sub := range []*Subscription{s1, s2} {
		for _, want := range chunks {
			res, err := sub.Recv(ctx)
			if err != nil {
				t.Fatalf("recv: %v", err)
			}
			if !bytes.Equal(res.Chunk, want) {
				t.Fatalf("got %q, want %q", res.Chunk, want)
			}
		}
	}
}

func TestLag_SlowSubscriberSkipsWithoutBlockingOthers(t *testing.T) {
	b := New(3)
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer slow.Release()
	defer fast.Release()

	// Overfill past capacity: slow never reads, fast drains eagerly.
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := b.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if res, err := fast.Recv(ctx); err != nil || res.Lagged != 0 {
			t.Fatalf("fast subscriber unexpectedly lagged or errored: %+v %v", res, err)
		}
	}

	res, err := slow.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if res.Lagged == 0 {
		t.Fatalf("expected slow subscriber to observe Lagged, got %+v", res)
	}

	// After the lag signal, the subscriber resumes from the oldest retained chunk.
	res2, err := slow.Recv(ctx)
	if err != nil {
		t.Fatalf("recv after lag: %v", err)
	}
	if res2.Lagged != 0 || res2.Chunk == nil {
		t.Fatalf("expected a resumed chunk, got %+v", res2)
	}
}

func TestClose_DrainsThenReportsClosed(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Release()

	if err := b.Send([]byte("only")); err != nil {
		t.Fatalf("send: %v", err)
	}
	b.Close()

	ctx := context.Background()
	res, err := sub.Recv(ctx)
	if err != nil || !bytes.Equal(res.Chunk, []byte("only")) {
		t.Fatalf("expected buffered chunk before closed signal, got %+v %v", res, err)
	}

	res, err = sub.Recv(ctx)
	if err != nil || !res.Closed {
		t.Fatalf("expected Closed after drain, got %+v %v", res, err)
	}
}

func TestRecv_ContextCancel_ReturnsPromptly(t *testing.T) {
	b := New(4)
	sub := b.Subscribe()
	defer sub.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := sub.Recv(ctx)
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}

func TestReceiverCount_TracksSubscribeAndRelease(t *testing.T) {
	b := New(4)
	if got := b.ReceiverCount(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	if got := b.ReceiverCount(); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
	s1.Release()
	if got := b.ReceiverCount(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	s2.Release()
	if got := b.ReceiverCount(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}
