package utils

import (
	"context"

	"github.com/invento-software-limited/Smart-Vat-Challan/appctx"
)

var (
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyInvoiceNumber = appctx.ContextKeyInvoiceNumber
	ContextKeyTriggeredBy   = appctx.ContextKeyTriggeredBy
)

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func GetInvoiceNumberFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyInvoiceNumber)
}

func SetInvoiceNumberInContext(ctx context.Context, invoiceNumber string) context.Context {
	return appctx.Set(ctx, ContextKeyInvoiceNumber, invoiceNumber)
}

func GetTriggeredByFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyTriggeredBy)
}

func SetTriggeredByInContext(ctx context.Context, triggeredBy string) context.Context {
	return appctx.Set(ctx, ContextKeyTriggeredBy, triggeredBy)
}
