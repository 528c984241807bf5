// Package checkout runs the checkout wizard: delivery type, address, payment,
// review and a single order submission. It is the only writer of the
// checkout selection store.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"storefront/internal/apperr"
	"storefront/internal/cart"
	"storefront/internal/clock"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/session"
	"storefront/internal/storage"
)

const (
	DefaultTTL    = 30 * time.Minute
	maxNotesRunes = 500

	pickupTitle = "Mağazadan teslim"

	// DefaultPaymentMethod is ordered when the payment step was skipped.
	DefaultPaymentMethod = models.PaymentCash
)

// SessionView is what checkout needs from the session manager.
type SessionView interface {
	IsValid() bool
	Snapshot() session.Snapshot
}

// CartSnapshot supplies the items to order and is emptied after a completed
// order.
type CartSnapshot interface {
	CurrentItems(ctx context.Context) ([]models.LineItem, error)
	Clear(ctx context.Context) error
}

type OrderAPI interface {
	CreateOrder(ctx context.Context, dto models.OrderSubmission, idempotencyKey string) (models.OrderRecord, error)
	GetOrderStatus(ctx context.Context, id string) (models.OrderRecord, error)
}

type AddressAPI interface {
	ListAddresses(ctx context.Context) ([]models.Address, error)
}

type Deps struct {
	Store     *storage.CheckoutStore
	Session   SessionView
	Cart      CartSnapshot
	Orders    OrderAPI
	Addresses AddressAPI
}

type Options struct {
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// TTL is the sliding lifetime of a selection.
	TTL time.Duration
	// NewKey generates idempotency keys.
	NewKey func() string
}

type Orchestrator struct {
	store     *storage.CheckoutStore
	session   SessionView
	cart      CartSnapshot
	orders    OrderAPI
	addresses AddressAPI
	clock     clock.Clock
	log       *slog.Logger
	metrics   *metrics.Metrics
	validate  *validator.Validate
	ttl       time.Duration
	newKey    func() string

	mu        sync.Mutex
	state     State
	lastOrder *models.OrderRecord
	lastErr   error
}

func New(deps Deps, opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.NewKey == nil {
		opts.NewKey = uuid.NewString
	}
	if deps.Store == nil {
		deps.Store = storage.NewCheckoutStore(nil)
	}

	o := &Orchestrator{
		store:     deps.Store,
		session:   deps.Session,
		cart:      deps.Cart,
		orders:    deps.Orders,
		addresses: deps.Addresses,
		clock:     opts.Clock,
		log:       logger.Component(opts.Logger, "checkout"),
		metrics:   opts.Metrics,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		ttl:       opts.TTL,
		newKey:    opts.NewKey,
	}

	o.mu.Lock()
	if sel, ok := o.activeLocked(); ok {
		o.state = nextStep(sel)
	}
	o.mu.Unlock()
	return o
}

// nextStep is the wizard position implied by what sel already holds.
func nextStep(sel models.CheckoutSelection) State {
	switch {
	case sel.DeliveryType == models.DeliveryDelivery && !sel.HasAddress():
		return SelectingAddress
	case sel.PaymentMethod == "":
		return SelectingPayment
	default:
		return Reviewing
	}
}

func (o *Orchestrator) currentUserID() string {
	if o.session == nil {
		return ""
	}
	if u := o.session.Snapshot().User; u != nil {
		return u.ID
	}
	return ""
}

// activeLocked loads the selection and clears it when it has outlived the TTL
// or belongs to another user.
func (o *Orchestrator) activeLocked() (models.CheckoutSelection, bool) {
	sel, ok := o.store.Load()
	if !ok {
		return models.CheckoutSelection{}, false
	}

	now := o.clock.Now()
	if sel.ExpiredAt(now, o.ttl) {
		o.store.Clear()
		o.log.Info("checkout selection expired", slog.Time("createdAt", sel.CreatedTime()))
		return models.CheckoutSelection{}, false
	}
	if sel.OwnerID != "" && sel.OwnerID != o.currentUserID() {
		o.store.Clear()
		o.log.Info("checkout selection belongs to another user, cleared")
		return models.CheckoutSelection{}, false
	}
	return sel, true
}

func (o *Orchestrator) saveLocked(sel models.CheckoutSelection) {
	if err := o.store.Save(sel); err != nil {
		o.log.Warn("checkout selection persist failed", slog.String("error", err.Error()))
	}
}

func incomplete(reason string) error {
	return fmt.Errorf("%w: %s", apperr.ErrIncompleteSelection, reason)
}

// BeginCheckout starts a new selection, replacing any previous one. An
// address id is kept only for delivery.
func (o *Orchestrator) BeginCheckout(ctx context.Context, deliveryType models.DeliveryType, addressID string) (models.CheckoutSelection, error) {
	if !deliveryType.Valid() {
		return models.CheckoutSelection{}, apperr.Validation("deliveryType must be pickup or delivery")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == Submitting {
		return models.CheckoutSelection{}, apperr.ErrSubmissionInProgress
	}

	addressID = strings.TrimSpace(addressID)
	if deliveryType == models.DeliveryPickup && addressID != "" {
		o.log.Warn("address ignored for pickup", slog.String("addressId", addressID))
		addressID = ""
	}

	sel := models.CheckoutSelection{
		DeliveryType:      deliveryType,
		SelectedAddressID: addressID,
		OwnerID:           o.currentUserID(),
		IdempotencyKey:    o.newKey(),
		CreatedAt:         o.clock.Now().UnixMilli(),
	}
	o.saveLocked(sel)
	o.state = nextStep(sel)
	o.lastErr = nil
	o.log.Info("checkout started", slog.String("deliveryType", string(deliveryType)), slog.String("state", o.state.String()))
	return sel, nil
}

// mutate applies fn to the active selection, re-stamps it and persists it.
// fn returning false leaves the selection untouched.
func (o *Orchestrator) mutate(fn func(sel *models.CheckoutSelection) (bool, error)) (models.CheckoutSelection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == Submitting {
		return models.CheckoutSelection{}, apperr.ErrSubmissionInProgress
	}
	sel, ok := o.activeLocked()
	if !ok {
		o.state = SelectingDelivery
		return models.CheckoutSelection{}, incomplete("no active checkout")
	}

	changed, err := fn(&sel)
	if err != nil || !changed {
		return sel, err
	}
	sel.CreatedAt = o.clock.Now().UnixMilli()
	o.saveLocked(sel)
	o.state = nextStep(sel)
	return sel, nil
}

// UpdateAddress points a delivery selection at a saved address. Outside a
// delivery flow it logs and does nothing.
func (o *Orchestrator) UpdateAddress(ctx context.Context, addressID string) (models.CheckoutSelection, error) {
	addressID = strings.TrimSpace(addressID)
	if addressID == "" {
		return models.CheckoutSelection{}, apperr.Validation("addressId is required")
	}
	return o.mutate(func(sel *models.CheckoutSelection) (bool, error) {
		if sel.DeliveryType != models.DeliveryDelivery {
			o.log.Warn("address update outside delivery flow ignored", slog.String("deliveryType", string(sel.DeliveryType)))
			return false, nil
		}
		sel.SelectedAddressID = addressID
		sel.InlineAddress = nil
		return true, nil
	})
}

// UseInlineAddress replaces the saved address reference with a typed one.
func (o *Orchestrator) UseInlineAddress(ctx context.Context, addr models.InlineAddress) (models.CheckoutSelection, error) {
	addr.Title = strings.TrimSpace(addr.Title)
	addr.Detail = strings.TrimSpace(addr.Detail)
	addr.Note = strings.TrimSpace(addr.Note)
	if err := o.validate.Struct(addr); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return models.CheckoutSelection{}, apperr.Validation("%s is required", strings.ToLower(verrs[0].Field()))
		}
		return models.CheckoutSelection{}, apperr.Validation("%v", err)
	}
	return o.mutate(func(sel *models.CheckoutSelection) (bool, error) {
		if sel.DeliveryType != models.DeliveryDelivery {
			o.log.Warn("inline address outside delivery flow ignored")
			return false, nil
		}
		sel.SelectedAddressID = ""
		sel.InlineAddress = &addr
		return true, nil
	})
}

func (o *Orchestrator) SelectPayment(ctx context.Context, method models.PaymentMethod) (models.CheckoutSelection, error) {
	if !method.Valid() {
		return models.CheckoutSelection{}, apperr.Validation("paymentMethod must be cash or card")
	}
	return o.mutate(func(sel *models.CheckoutSelection) (bool, error) {
		sel.PaymentMethod = method
		return true, nil
	})
}

func (o *Orchestrator) SetNotes(ctx context.Context, notes string) (models.CheckoutSelection, error) {
	notes = strings.TrimSpace(notes)
	if len([]rune(notes)) > maxNotesRunes {
		return models.CheckoutSelection{}, apperr.Validation("notes must be at most %d characters", maxNotesRunes)
	}
	return o.mutate(func(sel *models.CheckoutSelection) (bool, error) {
		sel.Notes = notes
		return true, nil
	})
}

// IsActive reports whether a live selection exists. Expired or foreign
// selections are cleared as a side effect.
func (o *Orchestrator) IsActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.activeLocked()
	if !ok && o.state.inWizard() {
		o.state = SelectingDelivery
	}
	return ok
}

func (o *Orchestrator) Selection() (models.CheckoutSelection, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sel, ok := o.activeLocked()
	if !ok && o.state.inWizard() {
		o.state = SelectingDelivery
	}
	return sel, ok
}

// SelectedAddress resolves the selection's address for display: the inline
// address, or the saved address looked up by id. A saved id the backend no
// longer knows reports false.
func (o *Orchestrator) SelectedAddress(ctx context.Context) (models.Address, bool, error) {
	sel, ok := o.Selection()
	if !ok {
		return models.Address{}, false, incomplete("no active checkout")
	}
	if sel.InlineAddress != nil {
		return models.Address{Title: sel.InlineAddress.Title, Detail: sel.InlineAddress.Detail, Note: sel.InlineAddress.Note}, true, nil
	}
	if sel.SelectedAddressID == "" {
		return models.Address{}, false, nil
	}

	addresses, err := o.addresses.ListAddresses(ctx)
	if err != nil {
		return models.Address{}, false, fmt.Errorf("list addresses: %w", err)
	}
	for _, addr := range addresses {
		if addr.ID == sel.SelectedAddressID {
			return addr, true, nil
		}
	}
	o.log.Info("selected address not found", slog.String("addressId", sel.SelectedAddressID))
	return models.Address{}, false, nil
}

// BuildSubmission assembles the order request without changing state.
func (o *Orchestrator) BuildSubmission(ctx context.Context) (models.OrderSubmission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	dto, _, err := o.buildLocked(ctx)
	return dto, err
}

// Review builds the submission and moves the wizard to Reviewing.
func (o *Orchestrator) Review(ctx context.Context) (models.OrderSubmission, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == Submitting {
		return models.OrderSubmission{}, apperr.ErrSubmissionInProgress
	}
	dto, _, err := o.buildLocked(ctx)
	if err != nil {
		return models.OrderSubmission{}, err
	}
	o.state = Reviewing
	return dto, nil
}

func (o *Orchestrator) buildLocked(ctx context.Context) (models.OrderSubmission, models.CheckoutSelection, error) {
	sel, ok := o.activeLocked()
	if !ok {
		if o.state.inWizard() {
			o.state = SelectingDelivery
		}
		return models.OrderSubmission{}, sel, incomplete("no active checkout")
	}
	method := sel.PaymentMethod
	if method == "" {
		method = DefaultPaymentMethod
	}
	if !method.Valid() {
		return models.OrderSubmission{}, sel, apperr.Validation("unknown payment method %q", method)
	}
	if sel.DeliveryType == models.DeliveryDelivery && !sel.HasAddress() {
		return models.OrderSubmission{}, sel, incomplete("delivery address not selected")
	}

	items, err := o.cart.CurrentItems(ctx)
	if err != nil {
		return models.OrderSubmission{}, sel, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return models.OrderSubmission{}, sel, apperr.ErrEmptyCart
	}
	if o.session == nil || !o.session.IsValid() {
		return models.OrderSubmission{}, sel, apperr.ErrUnauthenticated
	}

	dto := models.OrderSubmission{
		Items:        make([]models.OrderItem, 0, len(items)),
		TotalPrice:   cart.Subtotal(items).InexactFloat64(),
		DeliveryType: sel.DeliveryType,
		PaymentMethod: models.OrderPaymentMethod{
			ID:    string(method),
			Label: method.Label(),
		},
		Notes: sel.Notes,
	}
	for _, item := range items {
		dto.Items = append(dto.Items, models.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     cart.UnitPrice(item).InexactFloat64(),
			Quantity:  item.Quantity,
		})
	}

	switch {
	case sel.DeliveryType == models.DeliveryPickup:
		dto.Customer = o.contactLocked(pickupTitle)
	case sel.SelectedAddressID != "":
		dto.ShippingAddressID = sel.SelectedAddressID
		dto.Customer = o.contactLocked("")
	default:
		dto.Customer = &models.OrderCustomer{
			Title:  sel.InlineAddress.Title,
			Detail: sel.InlineAddress.Detail,
			Note:   sel.InlineAddress.Note,
		}
	}
	return dto, sel, nil
}

// contactLocked is the customer block for orders that carry no typed
// address: the session user's name and email.
func (o *Orchestrator) contactLocked(title string) *models.OrderCustomer {
	user := o.session.Snapshot().User
	if user == nil {
		return nil
	}
	if title == "" {
		title = user.DisplayName()
	}
	return &models.OrderCustomer{Title: title, Detail: user.Email}
}

// Finalize submits the order once. A call while another is submitting is
// rejected. On success the cart and selection are cleared; on failure the
// selection and its idempotency key are kept for a user-triggered retry.
func (o *Orchestrator) Finalize(ctx context.Context) (models.OrderRecord, error) {
	o.mu.Lock()
	if o.state == Submitting {
		o.mu.Unlock()
		o.metrics.Finalize("in_progress")
		return models.OrderRecord{}, apperr.ErrSubmissionInProgress
	}

	dto, sel, err := o.buildLocked(ctx)
	if err != nil {
		if _, ok := o.store.Load(); ok {
			o.state = Failed
			o.lastErr = err
		}
		o.mu.Unlock()
		o.metrics.Finalize("rejected")
		return models.OrderRecord{}, err
	}
	o.state = Submitting
	o.mu.Unlock()

	o.log.Info("submitting order", slog.String("deliveryType", string(dto.DeliveryType)), slog.Int("items", len(dto.Items)), slog.Float64("total", dto.TotalPrice))
	record, err := o.orders.CreateOrder(ctx, dto, sel.IdempotencyKey)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err != nil {
		o.state = Failed
		o.lastErr = err
		o.metrics.Finalize("failed")
		o.log.Warn("order submission failed", slog.String("error", err.Error()))
		return models.OrderRecord{}, err
	}

	if err := o.cart.Clear(ctx); err != nil {
		o.log.Warn("cart clear after order failed", slog.String("error", err.Error()))
	}
	o.store.Clear()
	o.state = Completed
	o.lastErr = nil
	o.lastOrder = &record
	o.metrics.Finalize("ok")
	o.log.Info("order created", slog.String("orderId", record.ID))
	return record, nil
}

// Cancel abandons the checkout.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.store.Clear()
	if o.state != Submitting {
		o.state = SelectingDelivery
	}
	o.lastErr = nil
	o.log.Info("checkout cancelled")
}

func (o *Orchestrator) OrderStatus(ctx context.Context, id string) (models.OrderRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return models.OrderRecord{}, apperr.Validation("order id is required")
	}
	return o.orders.GetOrderStatus(ctx, id)
}

// WatchSession clears the selection of a user whose session ends. It returns
// when ctx is done or events is closed.
func (o *Orchestrator) WatchSession(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == session.EventInvalidated {
				o.sessionEnded(ev.UserID)
			}
		}
	}
}

func (o *Orchestrator) sessionEnded(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == Submitting {
		return
	}
	sel, ok := o.store.Load()
	if !ok || sel.OwnerID == "" || sel.OwnerID != userID {
		return
	}
	o.store.Clear()
	o.state = SelectingDelivery
	o.lastErr = nil
	o.log.Info("checkout cleared after session end", slog.String("userId", userID))
}

// State is the wizard position. Positions that need a selection fall back to
// SelectingDelivery once it is gone.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.inWizard() {
		if _, ok := o.activeLocked(); !ok {
			o.state = SelectingDelivery
		}
	}
	return o.state
}

// LastOrder is the order created by the most recent successful Finalize.
func (o *Orchestrator) LastOrder() (models.OrderRecord, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastOrder == nil {
		return models.OrderRecord{}, false
	}
	return *o.lastOrder, true
}

// LastError is the error that put the wizard in Failed.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}
