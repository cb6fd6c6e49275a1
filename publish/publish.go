// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package publish forwards committed ledger events to Kafka
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/certchain/chain"
	"github.com/blinklabs-io/certchain/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	DefaultTopic        = "certchain.transitions"
	defaultFlushTimeout = 10 * time.Second
)

var ErrNoBrokers = errors.New("no kafka brokers configured")

// producer is the subset of *kgo.Client used by the publisher
type producer interface {
	TryProduce(context.Context, *kgo.Record, func(*kgo.Record, error))
	Flush(context.Context) error
	Close()
}

// Message is the JSON value of each Kafka record
type Message struct {
	Position    uint64    `json:"position"`
	BlockNumber uint64    `json:"block_number"`
	BlockHash   string    `json:"block_hash"`
	LogIndex    uint32    `json:"log_index"`
	Hash        string    `json:"certificate_hash"`
	Action      string    `json:"action"`
	StudentID   string    `json:"student_id,omitempty"`
	Actor       string    `json:"actor"`
	Timestamp   time.Time `json:"timestamp"`
}

type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
	// CreateTopic creates the topic on startup when it is missing
	CreateTopic bool
	TopicSpec   TopicSpec
	Logger      *slog.Logger
	// PromRegistry is optional
	PromRegistry prometheus.Registerer
}

// Publisher is an event bus subscriber for chain.BlockEventType. Delivery
// never blocks the bus: records are queued with the client and failures are
// logged and counted.
type Publisher struct {
	client    producer
	topic     string
	logger    *slog.Logger
	produced  prometheus.Counter
	failed    prometheus.Counter
	closeOnce sync.Once
}

var _ event.Subscriber = (*Publisher)(nil)

func New(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	if cfg.CreateTopic {
		ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
		defer cancel()
		spec := cfg.TopicSpec
		if spec == (TopicSpec{}) {
			spec = DefaultTopicSpec
		}
		if err := EnsureTopic(ctx, client, topic, spec); err != nil {
			client.Close()
			return nil, err
		}
	}
	return newPublisher(client, topic, cfg.Logger, cfg.PromRegistry), nil
}

func newPublisher(
	client producer,
	topic string,
	logger *slog.Logger,
	promRegistry prometheus.Registerer,
) *Publisher {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	p := &Publisher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "publish"),
	}
	if promRegistry != nil {
		factory := promauto.With(promRegistry)
		p.produced = factory.NewCounter(prometheus.CounterOpts{
			Name: "publish_records_total",
			Help: "records acknowledged by kafka",
		})
		p.failed = factory.NewCounter(prometheus.CounterOpts{
			Name: "publish_failures_total",
			Help: "records kafka failed to accept",
		})
	}
	return p
}

// Deliver queues one record per event of a committed block. Records are
// keyed by certificate hash so the events of one certificate stay ordered
// within a partition.
func (p *Publisher) Deliver(evt event.Event) error {
	blockEvt, ok := evt.Data.(chain.BlockEvent)
	if !ok {
		p.logger.Warn(
			"ignoring unexpected event data",
			"type", string(evt.Type),
		)
		return nil
	}
	for _, ev := range blockEvt.Events {
		value, err := json.Marshal(NewMessage(blockEvt.Block, ev))
		if err != nil {
			return fmt.Errorf("encode event %d: %w", ev.Position, err)
		}
		record := &kgo.Record{
			Topic: p.topic,
			Key:   []byte(ev.CertificateHash.String()),
			Value: value,
		}
		p.client.TryProduce(context.Background(), record, p.produceCallback)
	}
	return nil
}

func (p *Publisher) produceCallback(r *kgo.Record, err error) {
	if err != nil {
		if p.failed != nil {
			p.failed.Inc()
		}
		p.logger.Error(
			"failed to publish event",
			"key", string(r.Key),
			"error", err,
		)
		return
	}
	if p.produced != nil {
		p.produced.Inc()
	}
}

// Close flushes queued records and closes the client
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultFlushTimeout)
		defer cancel()
		if err := p.client.Flush(ctx); err != nil {
			p.logger.Warn("flush before close failed", "error", err)
		}
		p.client.Close()
	})
}

func NewMessage(block chain.Block, ev chain.Event) Message {
	return Message{
		Position:    ev.Position,
		BlockNumber: block.Number,
		BlockHash:   block.Hash.String(),
		LogIndex:    ev.LogIndex,
		Hash:        ev.CertificateHash.String(),
		Action:      ev.Action.String(),
		StudentID:   ev.StudentID,
		Actor:       ev.Actor.String(),
		Timestamp:   ev.Timestamp,
	}
}
