package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"

	"stashpad/types"
)

// KafkaQueue publishes snapshot jobs to a Kafka topic. Used when the
// deployment runs a broker; the worker side is KafkaWorker.
type KafkaQueue struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaQueue connects a synchronous producer.
func NewKafkaQueue(brokers []string, topic string) (*KafkaQueue, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return &KafkaQueue{producer: producer, topic: topic}, nil
}

// Enqueue publishes one job keyed by article id.
func (q *KafkaQueue) Enqueue(ctx context.Context, job types.SnapshotJob) error {
	job.EnqueuedAt = time.Now().UTC()
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot job: %w", err)
	}

	_, _, err = q.producer.SendMessage(&sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(job.ArticleID),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		return fmt.Errorf("failed to publish snapshot job: %w", err)
	}
	return nil
}

// Close shuts the producer down.
func (q *KafkaQueue) Close() error { return q.producer.Close() }

// KafkaWorker consumes snapshot jobs from the topic in a consumer group.
type KafkaWorker struct {
	group   sarama.ConsumerGroup
	handler JobHandler
	topic   string
	groupID string
	ready   chan bool
}

// NewKafkaWorker creates the consumer-group worker.
func NewKafkaWorker(brokers []string, topic, groupID string, handler JobHandler) (*KafkaWorker, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	return &KafkaWorker{
		group:   group,
		handler: handler,
		topic:   topic,
		groupID: groupID,
		ready:   make(chan bool),
	}, nil
}

// Start begins consuming until ctx is cancelled. It returns once the first
// session is set up so callers know the worker is live.
func (w *KafkaWorker) Start(ctx context.Context) error {
	h := &jobGroupHandler{handler: w.handler, ready: w.ready}

	go func() {
		for {
			if err := w.group.Consume(ctx, []string{w.topic}, h); err != nil {
				if err == context.Canceled {
					return
				}
				log.Printf("Kafka consumer error: %v", err)
			}
			if ctx.Err() != nil {
				return
			}
			h.ready = make(chan bool)
		}
	}()

	<-w.ready
	log.Printf("snapshot worker started (group: %s, topic: %s)", w.groupID, w.topic)

	go func() {
		for err := range w.group.Errors() {
			log.Printf("Kafka consumer group error: %v", err)
		}
	}()

	return nil
}

// Close shuts the consumer group down.
func (w *KafkaWorker) Close() error { return w.group.Close() }

// jobGroupHandler implements sarama.ConsumerGroupHandler for snapshot jobs.
// Malformed or failed jobs are always marked: the fire-and-forget contract
// swallows errors rather than retrying into the same failure.
type jobGroupHandler struct {
	handler JobHandler
	ready   chan bool
}

func (h *jobGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *jobGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *jobGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			var job types.SnapshotJob
			if err := json.Unmarshal(message.Value, &job); err != nil {
				log.Printf("skipping malformed snapshot job at offset %d: %v", message.Offset, err)
				session.MarkMessage(message, "")
				continue
			}
			if job.ArticleID == "" || job.UserID == "" {
				log.Printf("skipping snapshot job missing ids at offset %d", message.Offset)
				session.MarkMessage(message, "")
				continue
			}

			if err := h.handler(session.Context(), &job); err != nil {
				log.Printf("snapshot job failed for article %s: %v", job.ArticleID, err)
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
