package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"echo-trivia/internal/app"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	declared   []string
	durable    bool
	published  []amqp.Publishing
	routingKey string
	declareErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.declared = append(f.declared, name)
	f.durable = durable
	return amqp.Queue{Name: name}, f.declareErr
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.routingKey = key
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublisherSendsPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	p, err := newPublisher(ch, "")
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultQueue}, ch.declared)
	assert.True(t, ch.durable)

	ev := app.SessionCompleted{SessionID: "s1", UserID: "alice", Mode: "survival", Bucket: "mixed", Score: 4, Rank: 1, CompletedAt: time.Now().UTC()}
	require.NoError(t, p.PublishSessionCompleted(context.Background(), ev))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, DefaultQueue, ch.routingKey)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "s1", msg.MessageId)

	var decoded app.SessionCompleted
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, ev.Score, decoded.Score)
	assert.Equal(t, ev.Bucket, decoded.Bucket)

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestPublisherDeclareFailure(t *testing.T) {
	_, err := newPublisher(&fakeChannel{declareErr: errors.New("access refused")}, "q")
	require.Error(t, err)
}
