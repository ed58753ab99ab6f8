package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"gold-price-alerts/internal/alerting"
	"gold-price-alerts/internal/config"
	"gold-price-alerts/internal/fetcher"
	"gold-price-alerts/internal/storage"
)

type staticFetcher struct {
	quote fetcher.Quote
	err   error
}

func (f *staticFetcher) FetchPrice(ctx context.Context) (fetcher.Quote, error) {
	return f.quote, f.err
}

type memSampleStore struct {
	samples   []storage.Sample
	appendErr error
}

func (m *memSampleStore) AppendSample(ctx context.Context, sample storage.Sample) error {
	if m.appendErr != nil {
		return m.appendErr
	}
	m.samples = append(m.samples, sample)
	return nil
}

func (m *memSampleStore) LatestSamples(ctx context.Context, limit int) ([]storage.Sample, error) {
	return m.samples, nil
}

func (m *memSampleStore) SamplesSince(ctx context.Context, from time.Time) ([]storage.Sample, error) {
	return m.samples, nil
}

func (m *memSampleStore) CountSamples(ctx context.Context) (int64, error) {
	return int64(len(m.samples)), nil
}

type memSubStore struct {
	subs    map[string]storage.Subscription
	listErr error
}

func newMemSubStore() *memSubStore {
	return &memSubStore{subs: make(map[string]storage.Subscription)}
}

func (m *memSubStore) UpsertSubscription(ctx context.Context, sub storage.Subscription) error {
	m.subs[sub.SubscriberID] = sub
	return nil
}

func (m *memSubStore) DeleteSubscription(ctx context.Context, id string) error {
	delete(m.subs, id)
	return nil
}

func (m *memSubStore) ListSubscriptions(ctx context.Context) ([]storage.Subscription, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]storage.Subscription, 0, len(m.subs))
	for _, sub := range m.subs {
		out = append(out, sub)
	}
	return out, nil
}

func (m *memSubStore) UpdateSubscriptionState(ctx context.Context, id string, lastSeen decimal.Decimal, notified bool) error {
	sub, ok := m.subs[id]
	if !ok {
		return errors.New("unknown subscriber")
	}
	sub.LastSeenPrice = lastSeen
	sub.Notified = notified
	m.subs[id] = sub
	return nil
}

type recordingNotifier struct {
	alerts []alerting.Alert
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, alert alerting.Alert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Source:   config.SourceConfig{RequestTimeout: time.Second},
		Alerting: config.AlertingConfig{Enabled: true},
	}
}

func newService(f fetcher.PriceFetcher, samples storage.SampleStore, subs storage.SubscriptionStore, n alerting.Notifier) *Service {
	return New(testConfig(), nil, f, samples, subs, n, nil, zerolog.Nop())
}

func quoteAt(price float64) fetcher.Quote {
	return fetcher.Quote{
		Price:  decimal.NewFromFloat(price),
		Link:   "https://example.com/offer",
		Source: "Grobbulus [US] - Alliance",
	}
}

func TestProcessTickPersistsAndNotifies(t *testing.T) {
	samples := &memSampleStore{}
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	notifier := &recordingNotifier{}

	svc := newService(&staticFetcher{quote: quoteAt(90)}, samples, subs, notifier)

	tick := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := svc.ProcessTick(context.Background(), tick); err != nil {
		t.Fatalf("ProcessTick failed: %v", err)
	}

	if len(samples.samples) != 1 || !samples.samples[0].Timestamp.Equal(tick) {
		t.Fatalf("sample not persisted at the tick instant: %+v", samples.samples)
	}
	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(notifier.alerts))
	}
	alert := notifier.alerts[0]
	if alert.SubscriberID != "u1" || alert.PriceLink == "" || alert.Footer == "" {
		t.Fatalf("alert missing context: %+v", alert)
	}

	got := subs.subs["u1"]
	if !got.Notified || !got.LastSeenPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("state not committed: %+v", got)
	}
}

func TestProcessTickFetchFailureAbortsCycle(t *testing.T) {
	samples := &memSampleStore{}
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	notifier := &recordingNotifier{}

	svc := newService(&staticFetcher{err: errors.New("source unreachable")}, samples, subs, notifier)

	if err := svc.ProcessTick(context.Background(), time.Now()); err == nil {
		t.Fatal("fetch failure should abort the cycle")
	}
	if len(samples.samples) != 0 {
		t.Fatal("no sample may be written for an aborted cycle")
	}
	if len(notifier.alerts) != 0 {
		t.Fatal("no alert may fire for an aborted cycle")
	}
}

func TestProcessTickAppendFailureSkipsAlerts(t *testing.T) {
	samples := &memSampleStore{appendErr: errors.New("storage down")}
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	notifier := &recordingNotifier{}

	svc := newService(&staticFetcher{quote: quoteAt(90)}, samples, subs, notifier)

	if err := svc.ProcessTick(context.Background(), time.Now()); err == nil {
		t.Fatal("append failure should abort the cycle")
	}
	if len(notifier.alerts) != 0 {
		t.Fatal("alerts must not run when the sample was not persisted")
	}
}

func TestProcessTickDispatchFailureStillCommits(t *testing.T) {
	samples := &memSampleStore{}
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	notifier := &recordingNotifier{err: errors.New("dm blocked")}

	svc := newService(&staticFetcher{quote: quoteAt(90)}, samples, subs, notifier)

	if err := svc.ProcessTick(context.Background(), time.Now()); err != nil {
		t.Fatalf("dispatch failure must not fail the cycle: %v", err)
	}

	got := subs.subs["u1"]
	if !got.Notified || !got.LastSeenPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("state must commit regardless of delivery: %+v", got)
	}
}

// TestProcessTickAsymmetricResetScenario drives the full price walk
// 100 → 90 → 90 → 100 → 90 against one subscriber with threshold 95 and
// expects exactly one notification, at the first drop.
func TestProcessTickAsymmetricResetScenario(t *testing.T) {
	samples := &memSampleStore{}
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	notifier := &recordingNotifier{}

	f := &staticFetcher{}
	svc := newService(f, samples, subs, notifier)

	tick := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i, price := range []float64{100, 90, 90, 100, 90} {
		f.quote = quoteAt(price)
		if err := svc.ProcessTick(context.Background(), tick.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("tick %d failed: %v", i, err)
		}
	}

	if len(notifier.alerts) != 1 {
		t.Fatalf("alerts = %d, want exactly 1", len(notifier.alerts))
	}
	got := subs.subs["u1"]
	if got.Notified {
		t.Fatal("notified should be reset after the rise to 100")
	}
	if !got.LastSeenPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("last seen price = %s, want 90 preserved across the reset", got.LastSeenPrice)
	}
	if len(samples.samples) != 5 {
		t.Fatalf("samples = %d, want 5", len(samples.samples))
	}
}

func TestSubscribeIdempotent(t *testing.T) {
	subs := newMemSubStore()
	svc := newService(&staticFetcher{}, nil, subs, nil)

	threshold := decimal.NewFromFloat(0.05)
	for i := 0; i < 2; i++ {
		if err := svc.Subscribe(context.Background(), "u1", threshold); err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
	}

	if len(subs.subs) != 1 {
		t.Fatalf("subscriptions = %d, want 1", len(subs.subs))
	}
	got := subs.subs["u1"]
	if !got.LastSeenPrice.IsZero() || got.Notified {
		t.Fatalf("subscribe must reset engine-owned state: %+v", got)
	}
}

func TestSubscribeOverwritesEngineState(t *testing.T) {
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{
		SubscriberID:  "u1",
		Threshold:     decimal.NewFromInt(95),
		LastSeenPrice: decimal.NewFromInt(90),
		Notified:      true,
	}
	svc := newService(&staticFetcher{}, nil, subs, nil)

	if err := svc.Subscribe(context.Background(), "u1", decimal.NewFromInt(80)); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	got := subs.subs["u1"]
	if !got.Threshold.Equal(decimal.NewFromInt(80)) || !got.LastSeenPrice.IsZero() || got.Notified {
		t.Fatalf("re-subscribe must replace the full record: %+v", got)
	}
}

func TestSubscribeRejectsBadInput(t *testing.T) {
	svc := newService(&staticFetcher{}, nil, newMemSubStore(), nil)

	if err := svc.Subscribe(context.Background(), "u1", decimal.Zero); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}
	if err := svc.Subscribe(context.Background(), "", decimal.NewFromInt(1)); !errors.Is(err, ErrInvalidSubscriber) {
		t.Fatalf("err = %v, want ErrInvalidSubscriber", err)
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	subs := newMemSubStore()
	subs.subs["u1"] = storage.Subscription{SubscriberID: "u1", Threshold: decimal.NewFromInt(95)}
	svc := newService(&staticFetcher{}, nil, subs, nil)

	for i := 0; i < 2; i++ {
		if err := svc.Unsubscribe(context.Background(), "u1"); err != nil {
			t.Fatalf("Unsubscribe failed: %v", err)
		}
	}
	if len(subs.subs) != 0 {
		t.Fatal("subscription should be deleted")
	}
}
