package services_test

import (
	"context"
	"order-payment-service/models"
	"order-payment-service/repository"
	"order-payment-service/services"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// memOrderRepo is an in-memory OrderRepository whose CompareAndSetStatus has
// the same conditional-write semantics as the SQL implementation.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]models.Order
}

func newMemOrderRepo(orders ...models.Order) *memOrderRepo {
	r := &memOrderRepo{orders: map[string]models.Order{}}
	for _, o := range orders {
		r.orders[o.OrderNo] = o
	}
	return r
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderNo]; ok {
		return repository.ErrDuplicateOrderNo
	}
	order.ID = uuid.New()
	r.orders[order.OrderNo] = *order
	return nil
}

func (r *memOrderRepo) FindByOrderNo(ctx context.Context, orderNo string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) FindByUserID(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if o.OwnedBy(userID) {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) FindAll(ctx context.Context, page, limit int) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o)
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) CompareAndSetStatus(ctx context.Context, orderNo string, expected, next models.OrderStatus, fields map[string]interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || o.Status != expected {
		return false, nil
	}
	o.Status = next
	o.Version++
	if tn, ok := fields["trade_no"].(string); ok {
		o.TradeNo = &tn
	}
	r.orders[orderNo] = o
	return true, nil
}

func (r *memOrderRepo) SetProvisionedUser(ctx context.Context, orderNo, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderNo]
	if !ok || o.ProvisionedUserID != nil {
		return false, nil
	}
	o.ProvisionedUserID = &userID
	r.orders[orderNo] = o
	return true, nil
}

func (r *memOrderRepo) get(orderNo string) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[orderNo]
}

// stubGateway returns whatever event it is told to and counts form requests.
type stubGateway struct {
	event     *models.VerifiedEvent
	verifyErr error
	formErr   error
	formCalls int32
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) CreatePaymentForm(ctx context.Context, p models.TradeParams) (*models.PaymentForm, error) {
	atomic.AddInt32(&g.formCalls, 1)
	if g.formErr != nil {
		return nil, g.formErr
	}
	return &models.PaymentForm{Gateway: "stub", Kind: models.FormKindRedirect, Content: "https://pay.example.com/" + p.OutTradeNo}, nil
}

func (g *stubGateway) VerifyNotification(ctx context.Context, raw models.RawNotification) (*models.VerifiedEvent, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	evt := *g.event
	return &evt, nil
}

func (g *stubGateway) Acknowledge(ok bool) (string, []byte) {
	if ok {
		return "text/plain", []byte("success")
	}
	return "text/plain", []byte("fail")
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, req services.ProvisionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.OrderStatusChangedEvent
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, evt models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type memCache struct {
	mu          sync.Mutex
	views       map[string]models.StatusView
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{views: map[string]models.StatusView{}}
}

func (c *memCache) Get(ctx context.Context, orderNo string) (*models.StatusView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[orderNo]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *memCache) Set(ctx context.Context, view *models.StatusView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[view.OrderNo] = *view
	return nil
}

func (c *memCache) Invalidate(ctx context.Context, orderNo string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, orderNo)
	c.invalidated = append(c.invalidated, orderNo)
	return nil
}

type memNotificationRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]models.PaymentNotification
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{items: map[uuid.UUID]models.PaymentNotification{}}
}

func (r *memNotificationRepo) Create(ctx context.Context, n *models.PaymentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uuid.New()
	r.items[n.ID] = *n
	return nil
}

func (r *memNotificationRepo) UpdateOutcome(ctx context.Context, n *models.PaymentNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[n.ID] = *n
	return nil
}

func (r *memNotificationRepo) FindByOutTradeNo(ctx context.Context, outTradeNo string) ([]models.PaymentNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.PaymentNotification
	for _, n := range r.items {
		if n.OutTradeNo == outTradeNo {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotificationRepo) outcomes() map[models.NotificationOutcome]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[models.NotificationOutcome]int{}
	for _, n := range r.items {
		out[n.Outcome]++
	}
	return out
}
