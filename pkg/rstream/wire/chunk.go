package wire

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/chris-alexander-pop/system-design-library/pkg/logger"
	"github.com/chris-alexander-pop/system-design-library/pkg/rstream/compression"
)

const subEntryTypeBit = 0x80

// EncodeStandardEntry frames a single message as a standard chunk entry: a
// 4-byte big-endian length followed by the payload. The length's top bit
// must stay clear for DecodeChunk to tell it apart from a sub-entry
// header, true for any realistic message size.
func EncodeStandardEntry(payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

// EncodeSubEntry frames a batch of messages as one compressed sub-entry:
// a type byte (high bit set, low 7 bits the compression type) followed by
// {records_in_batch:u16, uncompressed_size:u32, data_len:u32, compressed
// bytes}. The caller assigns all messages in the batch a single shared
// publishing id at the producer layer.
func EncodeSubEntry(registry *compression.Registry, compType compression.Type, payloads [][]byte) ([]byte, error) {
	comp, ok := registry.Get(compType)
	if !ok {
		return nil, fmt.Errorf("unknown sub-entry compression type %s", compType)
	}

	var raw bytes.Buffer
	for _, p := range payloads {
		raw.Write(EncodeStandardEntry(p))
	}

	compressed, err := comp.Compress(raw.Bytes())
	if err != nil {
		return nil, fmt.Errorf("compress sub-entry batch: %w", err)
	}

	header := make([]byte, 1+2+4+4)
	header[0] = subEntryTypeBit | byte(compType)
	binary.BigEndian.PutUint16(header[1:3], uint16(len(payloads)))
	binary.BigEndian.PutUint32(header[3:7], uint32(raw.Len()))
	binary.BigEndian.PutUint32(header[7:11], uint32(len(compressed)))

	return append(header, compressed...), nil
}

// DecodeChunk walks chunk.Data entry by entry, assigning each record the
// absolute offset chunk.ChunkID plus its position within the chunk, and
// invokes handle for each one in order. A malformed standard entry or an
// unrecognized/corrupt sub-entry batch is logged and skipped without
// aborting the rest of the chunk; a handle error or context cancellation
// stops parsing immediately and returns that error.
func DecodeChunk(ctx context.Context, chunk Chunk, registry *compression.Registry, handle func(DecodedRecord) error) (delivered, skipped int, err error) {
	r := bytes.NewReader(chunk.Data)
	remaining := chunk.NumRecords
	var messageOffset uint64

	for remaining > 0 {
		select {
		case <-ctx.Done():
			return delivered, skipped, ctx.Err()
		default:
		}

		entryType, readErr := r.ReadByte()
		if readErr != nil {
			return delivered, skipped, fmt.Errorf("read entry type: %w", readErr)
		}

		if entryType&subEntryTypeBit == 0 {
			if unreadErr := r.UnreadByte(); unreadErr != nil {
				return delivered, skipped, unreadErr
			}
			var length uint32
			if readErr := binary.Read(r, binary.BigEndian, &length); readErr != nil {
				return delivered, skipped, fmt.Errorf("read entry length: %w", readErr)
			}
			payload := make([]byte, length)
			if _, readErr := io.ReadFull(r, payload); readErr != nil {
				logger.L().Warn("skipping malformed chunk entry", "error", readErr)
				skipped++
				remaining--
				continue
			}

			offset := chunk.ChunkID + messageOffset
			messageOffset++
			remaining--

			if handleErr := handle(DecodedRecord{Offset: offset, Data: payload}); handleErr != nil {
				return delivered, skipped, handleErr
			}
			delivered++
			continue
		}

		compType := compression.Type(entryType & 0x7f)
		var recordsInBatch uint16
		var uncompressedSize uint32
		var dataLen uint32
		if readErr := binary.Read(r, binary.BigEndian, &recordsInBatch); readErr != nil {
			return delivered, skipped, fmt.Errorf("read sub-entry record count: %w", readErr)
		}
		if readErr := binary.Read(r, binary.BigEndian, &uncompressedSize); readErr != nil {
			return delivered, skipped, fmt.Errorf("read sub-entry uncompressed size: %w", readErr)
		}
		if readErr := binary.Read(r, binary.BigEndian, &dataLen); readErr != nil {
			return delivered, skipped, fmt.Errorf("read sub-entry data length: %w", readErr)
		}
		compressed := make([]byte, dataLen)
		if _, readErr := io.ReadFull(r, compressed); readErr != nil {
			logger.L().Warn("skipping malformed sub-entry batch", "error", readErr)
			skipped += int(recordsInBatch)
			remaining -= uint32(recordsInBatch)
			continue
		}

		comp, ok := registry.Get(compType)
		if !ok {
			logger.L().Warn("skipping sub-entry batch with unknown compression type", "type", compType)
			skipped += int(recordsInBatch)
			remaining -= uint32(recordsInBatch)
			continue
		}
		raw, decErr := comp.Decompress(compressed, int(uncompressedSize))
		if decErr != nil {
			logger.L().Warn("skipping sub-entry batch that failed to decompress", "error", decErr)
			skipped += int(recordsInBatch)
			remaining -= uint32(recordsInBatch)
			continue
		}

		sub := bytes.NewReader(raw)
		for i := 0; i < int(recordsInBatch); i++ {
			var length uint32
			if readErr := binary.Read(sub, binary.BigEndian, &length); readErr != nil {
				logger.L().Warn("skipping malformed sub-entry record", "error", readErr)
				skipped++
				continue
			}
			payload := make([]byte, length)
			if _, readErr := io.ReadFull(sub, payload); readErr != nil {
				logger.L().Warn("skipping malformed sub-entry record", "error", readErr)
				skipped++
				continue
			}
			offset := chunk.ChunkID + messageOffset
			messageOffset++

			if handleErr := handle(DecodedRecord{Offset: offset, Data: payload}); handleErr != nil {
				return delivered, skipped, handleErr
			}
			delivered++
		}
		remaining -= uint32(recordsInBatch)
	}

	return delivered, skipped, nil
}
