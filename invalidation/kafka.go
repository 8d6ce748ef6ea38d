package invalidation

import (
	"context"
	"io"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Reader is the subset of *kafka.Reader used by Subscriber.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is the subset of *kafka.Writer used by Publisher.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Invalidator drops cached entries of a collection.
type Invalidator interface {
	InvalidateCollection(ctx context.Context, collection string) error
}

// InvalidatorFunc adapts a function to Invalidator.
type InvalidatorFunc func(ctx context.Context, collection string) error

func (f InvalidatorFunc) InvalidateCollection(ctx context.Context, collection string) error {
	return f(ctx, collection)
}

// Config locates the invalidation topic.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// DefaultTopic carries invalidation events unless configured otherwise.
const DefaultTopic = "entitylist.invalidations"

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Brokers, validation.Required),
		validation.Field(&c.Topic, validation.Required),
	)
}

// NewReader returns a consumer group reader for cfg.
func NewReader(cfg Config) (*kafka.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, errors.New("invalidation: reader needs a group id")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
		MaxWait: time.Second,
	}), nil
}

// NewWriter returns a writer that keys messages by collection.
func NewWriter(cfg Config) (*kafka.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}, nil
}

// Stats counts the messages a Subscriber processed.
type Stats struct {
	Applied   int64
	Malformed int64
	Failed    int64
}

// Subscriber applies invalidation events read from Kafka.
type Subscriber struct {
	reader      Reader
	invalidator Invalidator
	logger      *zap.Logger

	applied   *xsync.Counter
	malformed *xsync.Counter
	failed    *xsync.Counter
}

// NewSubscriber returns a subscriber forwarding events from reader to inv.
func NewSubscriber(reader Reader, inv Invalidator, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Subscriber{
		reader:      reader,
		invalidator: inv,
		logger:      logger,
		applied:     xsync.NewCounter(),
		malformed:   xsync.NewCounter(),
		failed:      xsync.NewCounter(),
	}
}

// Run consumes events until ctx is done or the reader is closed. Every
// message is committed once handled, including malformed ones and ones whose
// invalidation failed; cache TTLs bound the staleness in that case.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				s.logger.Info("invalidation subscriber stopped")
				return nil
			}
			s.logger.Error("fetch invalidation message", zap.Error(err))
			return errors.Wrap(err, "invalidation: fetch")
		}

		s.handle(ctx, msg)

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "invalidation: commit")
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, msg kafka.Message) {
	event, err := Decode(msg.Value)
	if err != nil {
		s.malformed.Inc()
		s.logger.Warn("skipping malformed invalidation",
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
		return
	}

	if err := s.invalidator.InvalidateCollection(ctx, event.Collection); err != nil {
		s.failed.Inc()
		s.logger.Error("invalidate collection",
			zap.String("collection", event.Collection),
			zap.String("event", event.EventID),
			zap.Error(err),
		)
		return
	}
	s.applied.Inc()
	s.logger.Debug("collection invalidated",
		zap.String("collection", event.Collection),
		zap.String("op", string(event.Op)),
		zap.String("id", event.RecordID),
	)
}

// Stats returns the processed message counts.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Applied:   s.applied.Value(),
		Malformed: s.malformed.Value(),
		Failed:    s.failed.Value(),
	}
}

// Close closes the reader.
func (s *Subscriber) Close() error {
	return s.reader.Close()
}

// Publisher writes invalidation events to Kafka.
type Publisher struct {
	writer Writer
	logger *zap.Logger
}

// NewPublisher returns a publisher over writer.
func NewPublisher(writer Writer, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{writer: writer, logger: logger}
}

// Publish writes e, keyed by collection so events of one collection stay ordered.
// Missing ids and timestamps are filled in.
func (p *Publisher) Publish(ctx context.Context, e Event) error {
	if e.EventID == "" {
		e.EventID = NewEvent(e.Collection, e.Op, e.RecordID).EventID
	}
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := Encode(e)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.Collection), Value: data}); err != nil {
		p.logger.Error("publish invalidation", zap.String("collection", e.Collection), zap.Error(err))
		return errors.Wrap(err, "invalidation: publish")
	}
	p.logger.Debug("invalidation published", zap.String("collection", e.Collection), zap.String("event", e.EventID))
	return nil
}

// Close closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
