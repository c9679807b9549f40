package notify

import (
	"context"
	"encoding/json"
	"log"
	"strconv"

	"github.com/IBM/sarama"

	"helpdesk/realtime"
)

// NewSaramaConfig is the producer configuration for the event export.
func NewSaramaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.ClientID = "helpdesk"

	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	// events of one room or ticket stay ordered on one partition
	config.Producer.Partitioner = sarama.NewHashPartitioner
	return config
}

// KafkaSink publishes committed events to a topic, keyed by room or ticket.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewSaramaConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaSinkWithProducer(producer, topic), nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: topic}
}

func (k *KafkaSink) Publish(_ context.Context, key string, ev realtime.Event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(ev.Type)},
		},
	}

	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return err
	}
	log.Printf("[FANOUT] %s exported to partition %d at offset %d", ev.Type, partition, offset)
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
