// Package kafka publica los eventos del libro en un tópico de Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/jhoicas/agro-inventario/internal/application/ports"
	"github.com/jhoicas/agro-inventario/pkg/logger"
)

var _ ports.EventPublisher = (*Publisher)(nil)

// Writer abstrae kafka.Writer para pruebas.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config conexión al broker.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// Publisher implementa ports.EventPublisher con escritura síncrona: el relay solo marca
// un evento como publicado cuando el broker confirmó la escritura.
type Publisher struct {
	writer Writer
	topic  string
	log    *logger.Logger
}

// NewPublisher crea el writer y asegura que el tópico exista.
func NewPublisher(ctx context.Context, cfg Config, log *logger.Logger) (*Publisher, error) {
	if cfg.Topic == "" {
		return nil, errors.New("kafka: tópico no configurado")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: sin brokers configurados")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if err := ensureTopic(ctx, cfg.Brokers[0], cfg.Topic); err != nil {
		return nil, err
	}

	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{}, // misma clave, misma partición: orden por agregado
		RequiredAcks: kafkago.RequireAll,
		WriteTimeout: cfg.WriteTimeout,
	}
	return NewPublisherWithWriter(w, cfg.Topic, log), nil
}

// NewPublisherWithWriter construye el publisher sobre un Writer ya creado.
func NewPublisherWithWriter(w Writer, topic string, log *logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{writer: w, topic: topic, log: log.Component("kafka")}
}

func ensureTopic(ctx context.Context, broker, topic string) error {
	conn, err := kafkago.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("kafka: conectar a %s: %w", broker, err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions(topic)
	if err == nil && len(partitions) > 0 {
		return nil
	}
	err = conn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("kafka: crear tópico %s: %w", topic, err)
	}
	return nil
}

// Publish escribe el evento con la clave del agregado y el tipo en la cabecera event_type.
func (p *Publisher) Publish(ctx context.Context, key, eventType string, payload []byte) error {
	msg := kafkago.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: publicar en %s: %w", p.topic, err)
	}
	p.log.Debug().Str("topic", p.topic).Str("key", key).Str("event_type", eventType).Msg("evento publicado")
	return nil
}

// Close cierra el writer.
func (p *Publisher) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("kafka: cerrar writer de %s: %w", p.topic, err)
	}
	return nil
}
