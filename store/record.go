package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/jonwraymond/callgate/keys"
)

const recordVersion = 1

// Op is the kind of a journal record.
type Op string

// Journal operations.
const (
	OpPut   Op = "put"
	OpEvict Op = "evict"
)

// Entry is one persisted outcome: an encoded value or an error.
type Entry struct {
	Key       keys.CallKey
	Value     json.RawMessage
	Err       error
	CreatedAt time.Time
}

// record is the on-disk form of one journal line.
type record struct {
	Version   int             `json:"v"`
	Op        Op              `json:"op"`
	Key       string          `json:"key"`
	Canonical string          `json:"canonical"`
	Value     json.RawMessage `json:"value,omitempty"`
	Failed    bool            `json:"failed,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt int64           `json:"t,omitempty"`
	Sum       string          `json:"sum,omitempty"`
}

func putRecord(e Entry) record {
	r := record{
		Version:   recordVersion,
		Op:        OpPut,
		Key:       e.Key.Digest,
		Canonical: e.Key.Canonical,
		Value:     e.Value,
		CreatedAt: e.CreatedAt.UnixNano(),
	}
	if e.Err != nil {
		r.Failed = true
		r.Value = nil
		r.Error = strings.ToValidUTF8(e.Err.Error(), "\uFFFD")
	}
	return r
}

func evictRecord(k keys.CallKey) record {
	return record{
		Version:   recordVersion,
		Op:        OpEvict,
		Key:       k.Digest,
		Canonical: k.Canonical,
	}
}

func checksum(r record) (string, error) {
	r.Sum = ""
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// encode returns r as a checksummed line, newline included.
func (r record) encode() ([]byte, error) {
	sum, err := checksum(r)
	if err != nil {
		return nil, err
	}
	r.Sum = sum
	b, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

var (
	errChecksum = errors.New("checksum mismatch")
	errDigest   = errors.New("key digest does not match canonical key")
)

// decodeRecord parses and validates one journal line.
func decodeRecord(line []byte) (record, error) {
	var r record
	if err := json.Unmarshal(line, &r); err != nil {
		return record{}, err
	}
	if r.Version != recordVersion {
		return record{}, fmt.Errorf("unsupported version %d", r.Version)
	}
	want, err := checksum(r)
	if err != nil {
		return record{}, err
	}
	if r.Sum != want {
		return record{}, errChecksum
	}
	if r.Canonical == "" {
		return record{}, errors.New("missing key")
	}
	if keys.FromCanonical(r.Canonical).Digest != r.Key {
		return record{}, errDigest
	}
	switch r.Op {
	case OpPut:
		if !r.Failed && len(r.Value) == 0 {
			return record{}, errors.New("put without value")
		}
	case OpEvict:
	default:
		return record{}, fmt.Errorf("unknown op %q", r.Op)
	}
	return r, nil
}

func (r record) entry() Entry {
	e := Entry{
		Key:       keys.FromCanonical(r.Canonical),
		Value:     r.Value,
		CreatedAt: time.Unix(0, r.CreatedAt),
	}
	if r.Failed {
		e.Value = nil
		e.Err = &RestoredError{Message: r.Error}
	}
	return e
}
