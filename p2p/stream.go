/*
 * Copyright (C) 2024 The godwoken-sub004 Authors
 * This file is part of the godwoken-sub004 library.
 */

package p2p

import (
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/zstd"

	rerrors "github.com/godwokenrises/godwoken-sub004/rollup/errors"
)

// StreamEncoder writes a BlockSync stream (spec §6.4) to w, compressing with
// one zstd session shared across every message so repeated transaction
// bodies compress against earlier ones instead of starting cold each time
// ("retains context across messages in the same session").
type StreamEncoder struct {
	zw *zstd.Encoder
}

func NewStreamEncoder(w io.Writer) (*StreamEncoder, error) {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "p2p: open zstd encoder")
	}
	return &StreamEncoder{zw: zw}, nil
}

// WriteMessage writes one length-prefixed, protobuf-encoded message and
// flushes so the peer observes it without waiting for the session to close.
func (e *StreamEncoder) WriteMessage(m *Message) error {
	buf := EncodeMessage(m)
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(buf)))
	if _, err := e.zw.Write(lenPrefix[:]); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "p2p: write message length")
	}
	if _, err := e.zw.Write(buf); err != nil {
		return rerrors.Wrap(rerrors.Unknown, err, "p2p: write message body")
	}
	return e.zw.Flush()
}

func (e *StreamEncoder) Close() error { return e.zw.Close() }

// StreamDecoder is the reader-side counterpart of StreamEncoder.
type StreamDecoder struct {
	zr *zstd.Decoder
}

func NewStreamDecoder(r io.Reader) (*StreamDecoder, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "p2p: open zstd decoder")
	}
	return &StreamDecoder{zr: zr}, nil
}

func (d *StreamDecoder) ReadMessage() (*Message, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(d.zr, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.zr, buf); err != nil {
		return nil, rerrors.Wrap(rerrors.Unknown, err, "p2p: read message body")
	}
	return DecodeMessage(buf)
}

func (d *StreamDecoder) Close() error {
	d.zr.Close()
	return nil
}
