package appctx

import "context"

// ContextKey types the values utils and vschallan attach to a sync context.
type ContextKey string

func (c ContextKey) String() string { return string(c) }

var (
	ContextKeyCorrelationId = ContextKey("CorrelationId")
	// ContextKeyInvoiceNumber is the POS invoice a remote call is made for.
	ContextKeyInvoiceNumber = ContextKey("InvoiceNumber")

	// ContextKeyTriggeredBy records who started a sync pass (manual, system, pubsub).
	ContextKeyTriggeredBy = ContextKey("TriggeredBy")
)

func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok
}

func Set(ctx context.Context, key ContextKey, value any) context.Context {
	return context.WithValue(ctx, key, value)
}
