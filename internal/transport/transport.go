package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/crossdev/syncmesh/pkg/models"
)

// Envelope is the unit put on the wire for one transfer: enough for
// the receiving device to adopt the context state and verify it.
type Envelope struct {
	ContextID string             `cbor:"1,keyasint"`
	Type      models.ContextType `cbor:"2,keyasint"`
	Version   int64              `cbor:"3,keyasint"`
	Checksum  string             `cbor:"4,keyasint"`
	Payload   []byte             `cbor:"5,keyasint"`
}

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: identical context state always produces identical bytes,
// so receivers can compare envelopes byte-wise.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("transport: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("transport: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes an envelope to deterministic CBOR.
func Encode(env Envelope) ([]byte, error) {
	return encMode.Marshal(env)
}

// Decode deserializes an envelope from CBOR.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := decMode.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return env, nil
}

// Transport moves a context envelope to a target device. The
// coordination logic above this boundary is transport-agnostic.
type Transport interface {
	Send(ctx context.Context, env Envelope, target *models.Device) error
}

// Loopback simulates a transfer with a fixed delay, standing in for
// the real transport. An injectable failure function lets tests force
// transfer errors.
type Loopback struct {
	Delay time.Duration
	Fail  func(env Envelope, target *models.Device) error

	mu   sync.Mutex
	sent []Envelope
}

// NewLoopback creates a loopback transport with the reference delay.
func NewLoopback() *Loopback {
	return &Loopback{Delay: 100 * time.Millisecond}
}

// Send encodes the envelope, waits out the simulated delay, and
// records the envelope as delivered.
func (l *Loopback) Send(ctx context.Context, env Envelope, target *models.Device) error {
	if l.Fail != nil {
		if err := l.Fail(env, target); err != nil {
			return err
		}
	}

	// Encode even though the bytes go nowhere; a payload that cannot
	// be encoded would fail on a real wire too.
	if _, err := Encode(env); err != nil {
		return err
	}

	if l.Delay > 0 {
		select {
		case <-time.After(l.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	l.mu.Lock()
	l.sent = append(l.sent, env)
	l.mu.Unlock()
	return nil
}

// Sent returns the envelopes delivered so far.
func (l *Loopback) Sent() []Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Envelope, len(l.sent))
	copy(out, l.sent)
	return out
}
