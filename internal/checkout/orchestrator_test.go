package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"storefront/internal/apperr"
	"storefront/internal/cart"
	"storefront/internal/clock"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/storage"
)

var testStart = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeSession struct {
	mu    sync.Mutex
	valid bool
	user  *models.User
}

func (f *fakeSession) IsValid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.valid
}

func (f *fakeSession) Snapshot() session.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return session.Snapshot{User: f.user}
}

func (f *fakeSession) setUser(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user = u
}

type fakeOrders struct {
	mu     sync.Mutex
	create func(dto models.OrderSubmission, key string) (models.OrderRecord, error)
	calls  int
	keys   []string
	dtos   []models.OrderSubmission
}

func (f *fakeOrders) CreateOrder(_ context.Context, dto models.OrderSubmission, key string) (models.OrderRecord, error) {
	f.mu.Lock()
	f.calls++
	f.keys = append(f.keys, key)
	f.dtos = append(f.dtos, dto)
	create := f.create
	n := f.calls
	f.mu.Unlock()
	if create != nil {
		return create(dto, key)
	}
	return models.OrderRecord{ID: fmt.Sprintf("o-%d", n), Status: "pending", TotalPrice: dto.TotalPrice}, nil
}

func (f *fakeOrders) GetOrderStatus(_ context.Context, id string) (models.OrderRecord, error) {
	return models.OrderRecord{ID: id, Status: "preparing"}, nil
}

type fakeAddresses struct {
	addresses []models.Address
	err       error
}

func (f fakeAddresses) ListAddresses(context.Context) ([]models.Address, error) {
	return f.addresses, f.err
}

type harness struct {
	clock   *clock.Manual
	kv      *storage.MemoryKV
	store   *storage.CheckoutStore
	session *fakeSession
	cart    *cart.Cart
	orders  *fakeOrders
	metrics *metrics.Metrics
	keys    int
	o       *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:   clock.NewManual(testStart),
		kv:      storage.NewMemoryKV(),
		session: &fakeSession{valid: true, user: &models.User{ID: "U1", Name: "Ayşe Yılmaz", Email: "ayse@example.com"}},
		orders:  &fakeOrders{},
		metrics: metrics.New(),
	}
	h.store = storage.NewCheckoutStore(h.kv)
	h.cart = cart.New(h.kv, logger.Discard())
	h.o = h.newOrchestrator()
	return h
}

func (h *harness) newOrchestrator() *Orchestrator {
	return New(Deps{
		Store:   h.store,
		Session: h.session,
		Cart:    h.cart,
		Orders:  h.orders,
		Addresses: fakeAddresses{addresses: []models.Address{
			{ID: "A1", Title: "Ev", Detail: "Moda Cd. 12, Kadıköy"},
		}},
	}, Options{
		Clock:   h.clock,
		Logger:  logger.Discard(),
		Metrics: h.metrics,
		NewKey: func() string {
			h.keys++
			return fmt.Sprintf("key-%d", h.keys)
		},
	})
}

func (h *harness) fillCart(t *testing.T) {
	t.Helper()
	items := []models.LineItem{
		{ProductID: "p1", Name: "Zeytinyağı", Price: 9000, Quantity: 1},
		{ProductID: "p2", Name: "Peynir", Price: 4500, Quantity: 2},
	}
	for _, item := range items {
		if err := h.cart.Add(item); err != nil {
			t.Fatalf("cart add: %v", err)
		}
	}
}

func (h *harness) pickupWithCash(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.o.BeginCheckout(ctx, models.DeliveryPickup, ""); err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}
	if _, err := h.o.SelectPayment(ctx, models.PaymentCash); err != nil {
		t.Fatalf("SelectPayment returned error: %v", err)
	}
}

func TestPickupCheckoutIsSubmittedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.pickupWithCash(t)
	ctx := context.Background()

	dto, err := h.o.BuildSubmission(ctx)
	if err != nil {
		t.Fatalf("BuildSubmission returned error: %v", err)
	}
	if dto.DeliveryType != models.DeliveryPickup || dto.ShippingAddressID != "" {
		t.Fatalf("pickup DTO carries an address: %+v", dto)
	}
	if dto.TotalPrice != 18000 || len(dto.Items) != 2 {
		t.Fatalf("total = %v items = %d, want 18000 and 2", dto.TotalPrice, len(dto.Items))
	}
	if dto.PaymentMethod.ID != "cash" {
		t.Fatalf("payment method = %+v", dto.PaymentMethod)
	}

	record, err := h.o.Finalize(ctx)
	if err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if record.ID != "o-1" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if h.o.IsActive() {
		t.Fatal("selection should be gone after a completed order")
	}
	if h.o.State() != Completed {
		t.Fatalf("State = %v, want completed", h.o.State())
	}
	if h.cart.Count() != 0 {
		t.Fatal("cart should be cleared after a completed order")
	}
	if last, ok := h.o.LastOrder(); !ok || last.ID != "o-1" {
		t.Fatalf("LastOrder = %+v, %v", last, ok)
	}

	if _, err := h.o.Finalize(ctx); !errors.Is(err, apperr.ErrIncompleteSelection) {
		t.Fatalf("second Finalize = %v, want incomplete selection", err)
	}
	if h.orders.calls != 1 {
		t.Fatalf("orders submitted = %d, want 1", h.orders.calls)
	}
	if v := testutil.ToFloat64(h.metrics.FinalizeCounter("ok")); v != 1 {
		t.Fatalf("finalize ok = %v", v)
	}
}

func TestPickupWithoutPaymentStepOrdersCash(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	ctx := context.Background()

	if _, err := h.o.BeginCheckout(ctx, models.DeliveryPickup, ""); err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}
	dto, err := h.o.BuildSubmission(ctx)
	if err != nil {
		t.Fatalf("BuildSubmission returned error: %v", err)
	}
	if dto.TotalPrice != 18000 || dto.ShippingAddressID != "" || dto.PaymentMethod.ID != "cash" {
		t.Fatalf("unexpected DTO: %+v", dto)
	}

	if _, err := h.o.Finalize(ctx); err != nil {
		t.Fatalf("Finalize returned error: %v", err)
	}
	if _, err := h.o.Finalize(ctx); err == nil {
		t.Fatal("second Finalize should be rejected")
	}
	if h.orders.calls != 1 || h.orders.dtos[0].PaymentMethod.ID != "cash" {
		t.Fatalf("orders = %d dtos = %+v, want one cash order", h.orders.calls, h.orders.dtos)
	}
	if h.o.IsActive() {
		t.Fatal("selection should be gone after a completed order")
	}
}

func TestDeliveryWithSavedAddressCarriesShippingAddressID(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	ctx := context.Background()

	if _, err := h.o.BeginCheckout(ctx, models.DeliveryDelivery, "A1"); err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}
	if h.o.State() != SelectingPayment {
		t.Fatalf("State = %v, want selecting_payment", h.o.State())
	}
	if _, err := h.o.SelectPayment(ctx, models.PaymentCard); err != nil {
		t.Fatalf("SelectPayment returned error: %v", err)
	}

	dto, err := h.o.Review(ctx)
	if err != nil {
		t.Fatalf("Review returned error: %v", err)
	}
	if dto.ShippingAddressID != "A1" {
		t.Fatalf("shippingAddressId = %q, want A1", dto.ShippingAddressID)
	}
	if dto.Customer == nil || dto.Customer.Detail != "ayse@example.com" {
		t.Fatalf("customer block = %+v", dto.Customer)
	}
	if h.o.State() != Reviewing {
		t.Fatalf("State = %v, want reviewing", h.o.State())
	}

	addr, ok, err := h.o.SelectedAddress(ctx)
	if err != nil || !ok || addr.Title != "Ev" {
		t.Fatalf("SelectedAddress = %+v, %v, %v", addr, ok, err)
	}
}

func TestInlineAddressReplacesSavedAddress(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	ctx := context.Background()

	if _, err := h.o.BeginCheckout(ctx, models.DeliveryDelivery, ""); err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}
	if h.o.State() != SelectingAddress {
		t.Fatalf("State = %v, want selecting_address", h.o.State())
	}
	if _, err := h.o.UseInlineAddress(ctx, models.InlineAddress{Title: " "}); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("blank inline address = %v, want validation error", err)
	}
	if _, err := h.o.UpdateAddress(ctx, "A1"); err != nil {
		t.Fatalf("UpdateAddress returned error: %v", err)
	}
	sel, err := h.o.UseInlineAddress(ctx, models.InlineAddress{Title: "İş", Detail: "Levent Plaza", Note: "3. kat"})
	if err != nil {
		t.Fatalf("UseInlineAddress returned error: %v", err)
	}
	if sel.SelectedAddressID != "" || sel.InlineAddress == nil {
		t.Fatalf("selection = %+v", sel)
	}

	_, _ = h.o.SelectPayment(ctx, models.PaymentCash)
	dto, err := h.o.BuildSubmission(ctx)
	if err != nil {
		t.Fatalf("BuildSubmission returned error: %v", err)
	}
	if dto.ShippingAddressID != "" || dto.Customer == nil || dto.Customer.Detail != "Levent Plaza" {
		t.Fatalf("inline DTO = %+v", dto)
	}
}

func TestSlidingExpiration(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.o.BeginCheckout(ctx, models.DeliveryDelivery, ""); err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}

	for i := 0; i < 4; i++ {
		h.clock.Advance(29 * time.Minute)
		if _, err := h.o.UpdateAddress(ctx, fmt.Sprintf("A%d", i)); err != nil {
			t.Fatalf("UpdateAddress %d returned error: %v", i, err)
		}
		if !h.o.IsActive() {
			t.Fatalf("selection expired after %d touches spaced 29m apart", i+1)
		}
	}

	h.clock.Advance(31 * time.Minute)
	if h.o.IsActive() {
		t.Fatal("selection should expire after 31m without interaction")
	}
	if _, ok := h.store.Load(); ok {
		t.Fatal("expired selection should be removed from the store")
	}
	if h.o.State() != SelectingDelivery {
		t.Fatalf("State = %v, want selecting_delivery", h.o.State())
	}
}

func TestUpdateAddressOutsideDeliveryIsNoop(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.o.UpdateAddress(ctx, "A1"); !errors.Is(err, apperr.ErrIncompleteSelection) {
		t.Fatalf("UpdateAddress without checkout = %v", err)
	}

	h.pickupWithCash(t)
	before, _ := h.o.Selection()
	h.clock.Advance(time.Minute)

	sel, err := h.o.UpdateAddress(ctx, "A1")
	if err != nil {
		t.Fatalf("UpdateAddress on pickup returned error: %v", err)
	}
	if sel.SelectedAddressID != "" || sel.CreatedAt != before.CreatedAt {
		t.Fatalf("pickup selection was mutated: %+v", sel)
	}
}

func TestBeginCheckout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.o.BeginCheckout(ctx, "drone", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("unknown delivery type = %v", err)
	}

	sel, err := h.o.BeginCheckout(ctx, models.DeliveryPickup, "A1")
	if err != nil {
		t.Fatalf("BeginCheckout returned error: %v", err)
	}
	if sel.SelectedAddressID != "" {
		t.Fatal("pickup must drop the address id")
	}
	if sel.OwnerID != "U1" || sel.IdempotencyKey != "key-1" || sel.CreatedAt != testStart.UnixMilli() {
		t.Fatalf("unexpected selection: %+v", sel)
	}

	again, _ := h.o.BeginCheckout(ctx, models.DeliveryPickup, "")
	if again.IdempotencyKey == sel.IdempotencyKey {
		t.Fatal("a new checkout needs a new idempotency key")
	}
}

func TestBuildSubmissionPreconditions(t *testing.T) {
	ctx := context.Background()

	t.Run("no selection", func(t *testing.T) {
		h := newHarness(t)
		h.fillCart(t)
		if _, err := h.o.BuildSubmission(ctx); !errors.Is(err, apperr.ErrIncompleteSelection) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("delivery without address", func(t *testing.T) {
		h := newHarness(t)
		h.fillCart(t)
		_, _ = h.o.BeginCheckout(ctx, models.DeliveryDelivery, "")
		_, _ = h.o.SelectPayment(ctx, models.PaymentCash)
		if _, err := h.o.BuildSubmission(ctx); !errors.Is(err, apperr.ErrIncompleteSelection) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		h := newHarness(t)
		h.pickupWithCash(t)
		if _, err := h.o.BuildSubmission(ctx); !errors.Is(err, apperr.ErrEmptyCart) {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("session not valid", func(t *testing.T) {
		h := newHarness(t)
		h.fillCart(t)
		h.pickupWithCash(t)
		h.session.valid = false
		if _, err := h.o.BuildSubmission(ctx); !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("got %v", err)
		}
	})
}

func TestConcurrentFinalizeIsRejected(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.pickupWithCash(t)

	started := make(chan struct{})
	release := make(chan struct{})
	h.orders.create = func(dto models.OrderSubmission, key string) (models.OrderRecord, error) {
		close(started)
		<-release
		return models.OrderRecord{ID: "o-1", Status: "pending"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.o.Finalize(context.Background())
		done <- err
	}()

	<-started
	if h.o.State() != Submitting {
		t.Fatalf("State = %v, want submitting", h.o.State())
	}
	if _, err := h.o.Finalize(context.Background()); !errors.Is(err, apperr.ErrSubmissionInProgress) {
		t.Fatalf("second Finalize = %v, want submission in progress", err)
	}
	if _, err := h.o.SelectPayment(context.Background(), models.PaymentCard); !errors.Is(err, apperr.ErrSubmissionInProgress) {
		t.Fatalf("edit during submission = %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("first Finalize returned error: %v", err)
	}
	if h.orders.calls != 1 {
		t.Fatalf("orders submitted = %d, want 1", h.orders.calls)
	}
	if v := testutil.ToFloat64(h.metrics.FinalizeCounter("in_progress")); v != 1 {
		t.Fatalf("in_progress rejections = %v", v)
	}
}

func TestFailedFinalizeKeepsSelectionForRetry(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.pickupWithCash(t)
	ctx := context.Background()

	h.orders.create = func(models.OrderSubmission, string) (models.OrderRecord, error) {
		return models.OrderRecord{}, fmt.Errorf("create order: %w", apperr.ErrRemoteUnavailable)
	}
	if _, err := h.o.Finalize(ctx); !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Fatalf("Finalize = %v, want remote unavailable", err)
	}
	if h.o.State() != Failed || h.o.LastError() == nil {
		t.Fatalf("State = %v, want failed", h.o.State())
	}
	if _, ok := h.o.Selection(); !ok {
		t.Fatal("failed finalize must keep the selection")
	}
	if h.cart.Count() == 0 {
		t.Fatal("failed finalize must keep the cart")
	}

	h.orders.create = nil
	if _, err := h.o.Finalize(ctx); err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if len(h.orders.keys) != 2 || h.orders.keys[0] != h.orders.keys[1] {
		t.Fatalf("retry must reuse the idempotency key, got %v", h.orders.keys)
	}
}

func TestSelectionOwnedByAnotherUserIsCleared(t *testing.T) {
	h := newHarness(t)
	h.pickupWithCash(t)

	h.session.setUser(&models.User{ID: "U2"})
	if h.o.IsActive() {
		t.Fatal("another user's selection must not be active")
	}
	if _, ok := h.store.Load(); ok {
		t.Fatal("another user's selection should be cleared")
	}
}

func TestWatchSessionClearsSelectionOfEndedSession(t *testing.T) {
	h := newHarness(t)
	h.pickupWithCash(t)

	events := make(chan session.Event, 2)
	events <- session.Event{Kind: session.EventInvalidated, UserID: "U2"}
	close(events)
	h.o.WatchSession(context.Background(), events)
	if !h.o.IsActive() {
		t.Fatal("other user's logout must not clear the selection")
	}

	events = make(chan session.Event, 2)
	events <- session.Event{Kind: session.EventRenewed, UserID: "U1"}
	events <- session.Event{Kind: session.EventInvalidated, UserID: "U1", Reason: "logout"}
	close(events)
	h.o.WatchSession(context.Background(), events)

	if _, ok := h.store.Load(); ok {
		t.Fatal("selection should be cleared when its owner logs out")
	}
	if h.o.State() != SelectingDelivery {
		t.Fatalf("State = %v", h.o.State())
	}
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	h.pickupWithCash(t)

	h.o.Cancel(context.Background())
	h.o.Cancel(context.Background())
	if h.o.IsActive() || h.o.State() != SelectingDelivery {
		t.Fatalf("after cancel: active=%v state=%v", h.o.IsActive(), h.o.State())
	}
}

func TestRestartResumesWizardPosition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, _ = h.o.BeginCheckout(ctx, models.DeliveryDelivery, "A1")
	_, _ = h.o.SelectPayment(ctx, models.PaymentCard)

	resumed := h.newOrchestrator()
	if resumed.State() != Reviewing {
		t.Fatalf("State = %v, want reviewing", resumed.State())
	}
}

func TestSetNotesAndOrderStatus(t *testing.T) {
	h := newHarness(t)
	h.fillCart(t)
	h.pickupWithCash(t)
	ctx := context.Background()

	if _, err := h.o.SetNotes(ctx, "  Zili çalmayın  "); err != nil {
		t.Fatalf("SetNotes returned error: %v", err)
	}
	dto, err := h.o.BuildSubmission(ctx)
	if err != nil || dto.Notes != "Zili çalmayın" {
		t.Fatalf("notes = %q, %v", dto.Notes, err)
	}

	if _, err := h.o.OrderStatus(ctx, " "); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("OrderStatus blank id = %v", err)
	}
	record, err := h.o.OrderStatus(ctx, "o-9")
	if err != nil || record.Status != "preparing" {
		t.Fatalf("OrderStatus = %+v, %v", record, err)
	}
}
