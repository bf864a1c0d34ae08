package rstream

import (
	"context"

	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedSuperStreamProducer wraps a SuperStreamProducer with logging
// and tracing around every send.
type InstrumentedSuperStreamProducer struct {
	next   *SuperStreamProducer
	stream string
	tracer trace.Tracer
}

func NewInstrumentedSuperStreamProducer(next *SuperStreamProducer, superStream string) *InstrumentedSuperStreamProducer {
	return &InstrumentedSuperStreamProducer{
		next:   next,
		stream: superStream,
		tracer: otel.Tracer("pkg/rstream"),
	}
}

func (p *InstrumentedSuperStreamProducer) Send(ctx context.Context, publishingID uint64, msg *Message) error {
	ctx, span := p.tracer.Start(ctx, "rstream.Send", trace.WithAttributes(
		attribute.String("rstream.super_stream", p.stream),
		attribute.Int64("rstream.publishing_id", int64(publishingID)),
	))
	defer span.End()

	err := p.next.Send(ctx, publishingID, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to send message", "super_stream", p.stream, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "message sent")
	return nil
}

func (p *InstrumentedSuperStreamProducer) BatchSend(ctx context.Context, batch []PublishingMessage) error {
	ctx, span := p.tracer.Start(ctx, "rstream.BatchSend", trace.WithAttributes(
		attribute.String("rstream.super_stream", p.stream),
		attribute.Int("rstream.batch_size", len(batch)),
	))
	defer span.End()

	err := p.next.BatchSend(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to send batch", "super_stream", p.stream, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "batch sent")
	return nil
}

func (p *InstrumentedSuperStreamProducer) SubEntrySend(ctx context.Context, publishingID uint64, msgs []*Message, compressionType compression.Type) error {
	ctx, span := p.tracer.Start(ctx, "rstream.SubEntrySend", trace.WithAttributes(
		attribute.String("rstream.super_stream", p.stream),
		attribute.Int("rstream.batch_size", len(msgs)),
	))
	defer span.End()

	err := p.next.SubEntrySend(ctx, publishingID, msgs, compressionType)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.L().ErrorContext(ctx, "failed to send sub-entry batch", "super_stream", p.stream, "error", err)
		return err
	}
	span.SetStatus(codes.Ok, "sub-entry batch sent")
	return nil
}

func (p *InstrumentedSuperStreamProducer) GetLastPublishingID(ctx context.Context) uint64 {
	return p.next.GetLastPublishingID(ctx)
}

func (p *InstrumentedSuperStreamProducer) IsOpen() bool {
	return p.next.IsOpen()
}

func (p *InstrumentedSuperStreamProducer) Close(ctx context.Context) error {
	logger.L().InfoContext(ctx, "closing super stream producer", "super_stream", p.stream)
	return p.next.Close(ctx)
}

// WrapConsumerHandler instruments handler with a span per message before
// NewConsumer is called, since a Consumer's handler is fixed at
// construction time.
func WrapConsumerHandler(stream string, handler MessageHandler) MessageHandler {
	tracer := otel.Tracer("pkg/rstream")
	return func(ctx context.Context, consumer *Consumer, msg *Message) error {
		ctx, span := tracer.Start(ctx, "rstream.HandleMessage", trace.WithAttributes(
			attribute.String("rstream.stream", stream),
			attribute.String("rstream.message_id", msg.Properties.MessageID),
		))
		defer span.End()

		err := handler(ctx, consumer, msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.L().ErrorContext(ctx, "failed to process message", "stream", stream, "error", err)
			return err
		}
		span.SetStatus(codes.Ok, "message processed")
		return nil
	}
}
