package worker

import (
	"context"
	"errors"

	"retail-order-service/internal/broker"
	"retail-order-service/internal/models"
	"retail-order-service/internal/service"
	"retail-order-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MessageConsumer is the Kafka side of a worker. *broker.Consumer implements it.
type MessageConsumer interface {
	StartConsuming(ctx context.Context, handler broker.MessageHandler) error
	Close() error
}

// ShopDirectory resolves the account behind a shop id
type ShopDirectory interface {
	ShopContact(ctx context.Context, shopID int64) (*models.Account, error)
}

// OrderMailer sends order receipts and approval or rejection notices
type OrderMailer interface {
	SendOrderReceived(ctx context.Context, to, name, billID string, lines int, total decimal.Decimal) error
	SendOrderDecision(ctx context.Context, to, name, billID string, approved bool, total decimal.Decimal) error
}

// NotificationWorker mails shops when their orders are placed, approved or rejected
type NotificationWorker struct {
	consumer     MessageConsumer
	eventHandler *broker.EventHandler
	shops        ShopDirectory
	mailer       OrderMailer
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer MessageConsumer, shops ShopDirectory, mailer OrderMailer) *NotificationWorker {
	w := &NotificationWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		shops:        shops,
		mailer:       mailer,
		logger:       util.GetLogger(),
	}

	w.eventHandler.OnOrderPlaced(w.handlePlaced)
	w.eventHandler.OnOrderApproved(w.handleApproved)
	w.eventHandler.OnOrderRejected(w.handleRejected)
	return w
}

// Start consumes events until ctx is cancelled
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	err := w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}

func (w *NotificationWorker) handlePlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	account, ok, err := w.contact(ctx, event.ShopID, event.BillID)
	if !ok {
		return err
	}

	if err := w.mailer.SendOrderReceived(ctx, account.Email, account.Name, event.BillID, len(event.Lines), event.TotalAmount); err != nil {
		return err
	}

	w.logger.Info("Order receipt sent",
		zap.String("bill_id", event.BillID),
		zap.Int64("shop_id", event.ShopID))
	return nil
}

func (w *NotificationWorker) handleApproved(ctx context.Context, event *models.OrderApprovedEvent) error {
	return w.notify(ctx, event.ShopID, event.BillID, true, event.TotalAmount)
}

func (w *NotificationWorker) handleRejected(ctx context.Context, event *models.OrderRejectedEvent) error {
	return w.notify(ctx, event.ShopID, event.BillID, false, decimal.Zero)
}

func (w *NotificationWorker) notify(ctx context.Context, shopID int64, billID string, approved bool, total decimal.Decimal) error {
	account, ok, err := w.contact(ctx, shopID, billID)
	if !ok {
		return err
	}

	if err := w.mailer.SendOrderDecision(ctx, account.Email, account.Name, billID, approved, total); err != nil {
		return err
	}

	w.logger.Info("Order decision sent",
		zap.String("bill_id", billID),
		zap.Int64("shop_id", shopID),
		zap.Bool("approved", approved))
	return nil
}

// contact resolves the shop's account. ok is false when there is nobody to
// mail, with err set only for lookup failures.
func (w *NotificationWorker) contact(ctx context.Context, shopID int64, billID string) (*models.Account, bool, error) {
	account, err := w.shops.ShopContact(ctx, shopID)
	if service.IsKind(err, service.KindNotFound) {
		w.logger.Warn("No account for shop, skipping notification",
			zap.Int64("shop_id", shopID), zap.String("bill_id", billID))
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return account, true, nil
}
