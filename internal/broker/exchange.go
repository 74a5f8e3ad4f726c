package broker

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// Exchange is one published unit: a topic, optional tenant, a header bag,
// and an opaque message payload. Timestamp is recorded from the local
// clock at publication time (not normalized to UTC) — the wire format
// preserves this local value verbatim, matching the source's
// NaiveDateTime semantics rather than reinterpreting it as UTC.
type Exchange struct {
	Timestamp time.Time
	Topic     string
	Tenant    string
	HasTenant bool
	Headers   map[string]string
	Message   []byte
}

// NewExchange builds an Exchange stamped with the current local time.
func NewExchange(topic, tenant string, headers map[string]string, message []byte) Exchange {
	e := Exchange{
		Timestamp: time.Now(),
		Topic:     topic,
		Headers:   headers,
		Message:   message,
	}
	if tenant != "" {
		e.Tenant = tenant
		e.HasTenant = true
	}
	return e
}

// Encode serializes the Exchange to the fixed length-prefixed binary
// format described in SPEC_FULL.md §3. The same bytes returned here are
// what the journal stores and what subscribers receive verbatim.
func (e Exchange) Encode() []byte {
	var buf bytes.Buffer

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(e.Timestamp.UnixNano()))
	buf.Write(ts[:])

	writeString(&buf, e.Topic)

	if e.HasTenant {
		buf.WriteByte(1)
		writeString(&buf, e.Tenant)
	} else {
		buf.WriteByte(0)
	}

	var hc [4]byte
	binary.BigEndian.PutUint32(hc[:], uint32(len(e.Headers)))
	buf.Write(hc[:])
	for k, v := range e.Headers {
		writeString(&buf, k)
		writeString(&buf, v)
	}

	writeBytes(&buf, e.Message)

	return buf.Bytes()
}

// DecodeExchange deserializes bytes produced by Encode. It returns an
// error on truncated or malformed input; the dispatcher treats any such
// error as journal corruption (spec §4.1 "on decode failure, propagate a
// fatal error").
func DecodeExchange(data []byte) (Exchange, error) {
	r := bytes.NewReader(data)
	var e Exchange

	var tsBytes [8]byte
	if _, err := readFull(r, tsBytes[:]); err != nil {
		return e, fmt.Errorf("exchange: read timestamp: %w", err)
	}
	e.Timestamp = time.Unix(0, int64(binary.BigEndian.Uint64(tsBytes[:])))

	topic, err := readString(r)
	if err != nil {
		return e, fmt.Errorf("exchange: read topic: %w", err)
	}
	e.Topic = topic

	hasTenant, err := r.ReadByte()
	if err != nil {
		return e, fmt.Errorf("exchange: read tenant flag: %w", err)
	}
	if hasTenant == 1 {
		tenant, err := readString(r)
		if err != nil {
			return e, fmt.Errorf("exchange: read tenant: %w", err)
		}
		e.Tenant = tenant
		e.HasTenant = true
	}

	var hcBytes [4]byte
	if _, err := readFull(r, hcBytes[:]); err != nil {
		return e, fmt.Errorf("exchange: read header count: %w", err)
	}
	count := binary.BigEndian.Uint32(hcBytes[:])
	if count > 0 {
		e.Headers = make(map[string]string, count)
	}
	for i := uint32(0); i < count; i++ {
		k, err := readString(r)
		if err != nil {
			return e, fmt.Errorf("exchange: read header key: %w", err)
		}
		v, err := readString(r)
		if err != nil {
			return e, fmt.Errorf("exchange: read header value: %w", err)
		}
		e.Headers[k] = v
	}

	msg, err := readBytes(r)
	if err != nil {
		return e, fmt.Errorf("exchange: read message: %w", err)
	}
	e.Message = msg

	return e, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeBytes(buf, []byte(s))
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(b)))
	buf.Write(length[:])
	buf.Write(b)
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var length [4]byte
	if _, err := readFull(r, length[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(length[:])
	b := make([]byte, n)
	if _, err := readFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
