package vschallan

import (
	"context"
	"encoding/json"
	"io"

	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/invento-software-limited/Smart-Vat-Challan/config"
)

// PubSubDispatcher publishes jobs to a topic whose push subscription targets
// PubSubPushHandler.
type PubSubDispatcher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubDispatcher opens a client and resolves topicName, creating it
// when create is set.
func NewPubSubDispatcher(ctx context.Context, topicName string, create bool) (*PubSubDispatcher, error) {
	client, err := config.NewPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	topic := client.Topic(topicName)
	if create {
		topic, err = config.CreateTopicIfNotExists(ctx, client, topicName)
		if err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	return &PubSubDispatcher{client: client, topic: topic}, nil
}

func (d *PubSubDispatcher) Dispatch(ctx context.Context, job SyncJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	res := d.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"invoice_number": job.InvoiceNumber},
	})
	_, err = res.Get(ctx)
	return err
}

// Stop flushes pending publishes and closes the client.
func (d *PubSubDispatcher) Stop() {
	d.topic.Stop()
	_ = d.client.Close()
}

// PubSubPushHandler acknowledges every push with 204. A failed sync is left
// on the invoice as Failed for the next auto-sync.
func PubSubPushHandler(svc *Service, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var job SyncJob
		if err := json.Unmarshal(envelope.Message.Data, &job); err != nil {
			svc.logger.WithFields(logrus.Fields{
				"module":     moduleName,
				"func":       "PubSubPushHandler",
				"message_id": envelope.Message.ID,
			}).Warn("undecodable sync job")
			c.Status(204)
			return
		}
		if job.InvoiceNumber == "" {
			c.Status(204)
			return
		}

		_ = svc.HandleSyncJob(c.Request.Context(), job)
		c.Status(204)
	}
}
