package restock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/mailer"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
)

const (
	notifyKindRequested = "requested"
	notifyKindCancelled = "cancelled"
	notifyKindReceived  = "received"
)

// ProductNamer supplies the product name used in supplier emails.
type ProductNamer interface {
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
}

// notifier sends supplier emails after a committed transition. Failures are logged,
// counted and reported back, never returned as errors.
type notifier struct {
	mailer   mailer.Dispatcher
	products ProductNamer
	metrics  *metrics.RestockMetrics
	logg     *logger.Logger
}

func (n *notifier) requested(ctx context.Context, request *models.RestockRequest, code string) Notification {
	product := n.productName(ctx, request.ProductID)
	data := mailer.RestockRequestedData{
		SupplierName: deref(request.SupplierName),
		ProductName:  product,
		Requested:    request.Requested,
		Note:         deref(request.Note),
		Code:         code,
		ExpiresAt:    request.ExpiresAt,
	}
	subject := fmt.Sprintf("Restock request: %s", product)
	return n.send(ctx, notifyKindRequested, request, subject, mailer.TemplateRestockRequested, data)
}

func (n *notifier) cancelled(ctx context.Context, request *models.RestockRequest, code string) Notification {
	product := n.productName(ctx, request.ProductID)
	data := mailer.RestockCancelledData{
		SupplierName: deref(request.SupplierName),
		ProductName:  product,
		Requested:    request.Requested,
		Code:         code,
		CodeHint:     request.CodeHint,
		Reason:       deref(request.CancelledReason),
	}
	subject := fmt.Sprintf("Restock request cancelled: %s", product)
	return n.send(ctx, notifyKindCancelled, request, subject, mailer.TemplateRestockCancelled, data)
}

func (n *notifier) received(ctx context.Context, request *models.RestockRequest, receivedAt time.Time) Notification {
	product := n.productName(ctx, request.ProductID)
	data := mailer.RestockReceivedData{
		SupplierName: deref(request.SupplierName),
		ProductName:  product,
		Received:     request.Requested,
		ReceivedAt:   receivedAt,
	}
	subject := fmt.Sprintf("Restock received: %s", product)
	return n.send(ctx, notifyKindReceived, request, subject, mailer.TemplateRestockReceived, data)
}

func (n *notifier) send(ctx context.Context, kind string, request *models.RestockRequest, subject string, tmpl mailer.Template, data any) Notification {
	if n.mailer == nil {
		return failedNotification(mailer.ErrDisabled)
	}
	result, err := n.mailer.Send(ctx, request.SupplierEmail, subject, tmpl, data)
	if err != nil {
		n.metrics.IncNotificationFailure(kind)
		if n.logg != nil {
			logCtx := n.logg.WithRestockRequestID(ctx, request.ID.String())
			logCtx = n.logg.WithField(logCtx, "notification", kind)
			n.logg.Warn(logCtx, fmt.Sprintf("supplier notification not sent: %v", err))
		}
		return failedNotification(err)
	}
	notification := Notification{Sent: true}
	if result.MessageID != "" {
		id := result.MessageID
		notification.MessageID = &id
	}
	return notification
}

func (n *notifier) productName(ctx context.Context, productID uuid.UUID) string {
	if n.products != nil {
		name, err := n.products.DisplayName(ctx, productID)
		if err == nil && name != "" {
			return name
		}
		if err != nil && n.logg != nil {
			n.logg.Warn(n.logg.WithField(ctx, "product_id", productID.String()), "product name lookup failed")
		}
	}
	return productID.String()
}

func failedNotification(err error) Notification {
	msg := err.Error()
	return Notification{Sent: false, Error: &msg}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
