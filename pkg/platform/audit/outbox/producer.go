package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "supplydash/pkg/platform/audit"
)

// Message is a broker-agnostic record produced by the relay.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
}

//go:generate mockgen -source=producer.go -destination=mocks/outbox-mocks.go -package=mocks Producer

// Producer delivers a batch synchronously. Produce returns only after every
// message is acknowledged or one has failed.
type Producer interface {
	Produce(ctx context.Context, msgs []Message) error
}

// KafkaProducer produces through a franz-go client.
type KafkaProducer struct {
	client *kgo.Client
}

// NewKafkaClient builds a franz-go client that waits for all in-sync replicas.
func NewKafkaClient(brokers []string, clientID string) (*kgo.Client, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers not configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerBatchCompression(kgo.SnappyCompression(), kgo.NoCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

func NewKafkaProducer(client *kgo.Client) *KafkaProducer {
	return &KafkaProducer{client: client}
}

func (p *KafkaProducer) Produce(ctx context.Context, msgs []Message) error {
	records := make([]*kgo.Record, 0, len(msgs))
	for _, m := range msgs {
		rec := &kgo.Record{Topic: m.Topic, Key: m.Key, Value: m.Value}
		for k, v := range m.Headers {
			rec.Headers = append(rec.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, rec)
	}
	if err := p.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce audit records: %w", err)
	}
	return nil
}

// Ping checks broker connectivity.
func (p *KafkaProducer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Topic returns the topic name for an audit category.
func Topic(prefix string, category string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return category
	}
	return prefix + "." + category
}

// Topics returns the topic for every audit category.
func Topics(prefix string) []string {
	return []string{
		Topic(prefix, string(audit.CategoryCompliance)),
		Topic(prefix, string(audit.CategorySecurity)),
		Topic(prefix, string(audit.CategoryOperations)),
	}
}

// EnsureTopics creates the category topics, ignoring ones that already exist.
func EnsureTopics(ctx context.Context, client *kgo.Client, prefix string, partitions int32, replicationFactor int16) error {
	adm := kadm.NewClient(client)
	resps, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, Topics(prefix)...)
	if err != nil {
		return fmt.Errorf("create audit topics: %w", err)
	}
	for _, r := range resps.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}
