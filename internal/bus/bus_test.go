package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fincommerce/recommender/internal/config"
)

func TestMemoryBus_PublishSubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var received atomic.Int32
	var wg sync.WaitGroup

	err := bus.Subscribe(context.Background(), TopicRecoServed, func(ctx context.Context, event Event) error {
		received.Add(1)
		wg.Done()
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	wg.Add(3)
	for i := 0; i < 3; i++ {
		err := bus.Publish(context.Background(), TopicRecoServed, NewEvent(TopicRecoServed, "test", nil))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// Success
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if got := received.Load(); got != 3 {
		t.Errorf("Received %d events, want 3", got)
	}
}

func TestMemoryBus_MultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	var count1, count2 atomic.Int32
	var wg sync.WaitGroup

	bus.Subscribe(context.Background(), TopicProductCreated, func(ctx context.Context, event Event) error {
		count1.Add(1)
		wg.Done()
		return nil
	})

	bus.Subscribe(context.Background(), TopicProductCreated, func(ctx context.Context, event Event) error {
		count2.Add(1)
		wg.Done()
		return nil
	})

	wg.Add(2)
	if err := bus.Publish(context.Background(), TopicProductCreated, NewEvent(TopicProductCreated, "test", nil)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for events")
	}

	if count1.Load() != 1 || count2.Load() != 1 {
		t.Errorf("counts = (%d, %d), want (1, 1)", count1.Load(), count2.Load())
	}
}

func TestMemoryBus_NoSubscribers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	// Publishing to a topic with no subscribers should not error.
	err := bus.Publish(context.Background(), "unknown.topic", NewEvent("unknown.topic", "test", nil))
	if err != nil {
		t.Errorf("Publish() error = %v, want nil", err)
	}
}

func TestMemoryBus_ClosedBus(t *testing.T) {
	bus := NewMemoryBus()
	bus.Close()

	if err := bus.Publish(context.Background(), TopicRecoServed, Event{}); err == nil {
		t.Error("Publish() on closed bus: expected error")
	}
	if err := bus.Subscribe(context.Background(), TopicRecoServed, nil); err == nil {
		t.Error("Subscribe() on closed bus: expected error")
	}
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(TopicImpression, "server", map[string]string{"query": "wool socks"})

	if e.ID == "" {
		t.Error("NewEvent() ID is empty")
	}
	if e.Type != TopicImpression {
		t.Errorf("Type = %q, want %q", e.Type, TopicImpression)
	}
	if e.Source != "server" {
		t.Errorf("Source = %q, want server", e.Source)
	}
	if e.Timestamp == 0 {
		t.Error("NewEvent() Timestamp is zero")
	}
}

func TestNewBus(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.BusConfig
		wantErr bool
	}{
		{
			name: "memory bus",
			cfg:  config.BusConfig{Type: "memory"},
		},
		{
			name: "empty type defaults to memory",
			cfg:  config.BusConfig{},
		},
		{
			name:    "kafka without brokers",
			cfg:     config.BusConfig{Type: "kafka"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			cfg:     config.BusConfig{Type: "nats"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := NewBus(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewBus() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBus() error = %v", err)
			}
			b.Close()
		})
	}
}

func TestParseKafkaBrokers(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"localhost:9092", 1},
		{"a:9092, b:9092,c:9092", 3},
	}

	for _, tt := range tests {
		got := ParseKafkaBrokers(tt.input)
		if len(got) != tt.want {
			t.Errorf("ParseKafkaBrokers(%q) = %d brokers, want %d", tt.input, len(got), tt.want)
		}
		for _, b := range got {
			if b != "" && (b[0] == ' ' || b[len(b)-1] == ' ') {
				t.Errorf("broker %q not trimmed", b)
			}
		}
	}
}
