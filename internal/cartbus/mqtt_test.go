package cartbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/MrWong99/barkeep/internal/order"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { <-t.done; return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	token        paho.Token
	published    []published
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, retained, payload.([]byte)})
	return c.token
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) IsConnectionOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disconnected
}

func TestPublish(t *testing.T) {
	t.Parallel()
	fc := &fakeClient{token: doneToken(nil)}
	m := newMQTT(fc, "/bar/front/")

	d := Delta{
		SessionID: "s1",
		Intent:    order.IntentAddItem,
		Items:     []order.Item{{Name: "Mojito", Quantity: 2}},
		Cart:      []order.Item{{Name: "Mojito", Quantity: 2}},
		Total:     19,
	}
	if err := m.Publish(context.Background(), d); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fc.published) != 1 {
		t.Fatalf("published %d messages", len(fc.published))
	}
	p := fc.published[0]
	if p.topic != "bar/front/s1/order" || p.qos != 1 || p.retained {
		t.Errorf("publish = %s qos %d retained %v", p.topic, p.qos, p.retained)
	}
	var got Delta
	if err := json.Unmarshal(p.payload, &got); err != nil {
		t.Fatal(err)
	}
	if got.Intent != order.IntentAddItem || got.Total != 19 || len(got.Cart) != 1 {
		t.Errorf("payload = %+v", got)
	}
}

func TestPublish_BrokerError(t *testing.T) {
	t.Parallel()
	boom := errors.New("not authorized")
	m := newMQTT(&fakeClient{token: doneToken(boom)}, "")
	if err := m.Publish(context.Background(), Delta{SessionID: "s"}); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if got := m.Topic("s"); got != "barkeep/s/order" {
		t.Errorf("default topic = %q", got)
	}
}

func TestPublish_ContextDone(t *testing.T) {
	t.Parallel()
	m := newMQTT(&fakeClient{token: &fakeToken{done: make(chan struct{})}}, "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Publish(ctx, Delta{SessionID: "s"}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestClose(t *testing.T) {
	t.Parallel()
	fc := &fakeClient{token: doneToken(nil)}
	m := newMQTT(fc, "x")
	if err := m.Ready(context.Background()); err != nil {
		t.Errorf("Ready = %v", err)
	}
	m.Close()
	if !fc.disconnected {
		t.Error("Close did not disconnect")
	}
	if err := m.Publish(context.Background(), Delta{}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err after close = %v", err)
	}
	if err := m.Ready(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Ready after close = %v", err)
	}
}

func TestNewMQTT_RequiresBroker(t *testing.T) {
	t.Parallel()
	if _, err := NewMQTT(Config{}); err == nil {
		t.Error("expected error without broker url")
	}
}
