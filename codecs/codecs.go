// Package codecs hosts a small audio decoder registry with the Opus
// decoder as its primary entry.
//
// Every codec satisfies the same contract: a static Descriptor, a
// constructor taking Parameters, decode-into-buffer, and Reset. The
// registry maps numeric codec IDs to factories so hosts can resolve a
// decoder from a session description or container header without
// hard-coding codec types.
//
// IDs follow RTP payload type conventions: the static assignments from
// RFC 3551 for the G.711 pair, and the dynamic payload type 111 that
// SDP rtpmap entries commonly bind to Opus.
package codecs

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

var (
	// ErrUnknownCodec indicates a lookup for an ID with no registered
	// codec.
	ErrUnknownCodec = errors.New("codecs: unknown codec id")

	// ErrDuplicateCodec indicates a Register call with an ID that is
	// already taken.
	ErrDuplicateCodec = errors.New("codecs: codec id already registered")

	// ErrInvalidParameters indicates construction parameters the codec
	// cannot operate with.
	ErrInvalidParameters = errors.New("codecs: invalid codec parameters")
)

// Descriptor statically identifies a registered codec.
type Descriptor struct {
	// ID is the numeric registry key, by convention the codec's RTP
	// payload type.
	ID uint32

	// Name is the short lowercase name used in SDP rtpmap entries.
	Name string

	// LongName is a human-readable description.
	LongName string
}

// String returns the short name and ID, e.g. "opus (id 111)".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s (id %d)", d.Name, d.ID)
}

// Parameters carries construction-time configuration shared by all
// codecs in the registry.
type Parameters struct {
	// SampleRate is the output sample rate in Hz. Each codec accepts
	// its own set of rates; Opus takes 8000, 12000, 16000, 24000 or
	// 48000, the G.711 pair only 8000.
	SampleRate int

	// Channels is the output channel count, 1 or 2. G.711 is mono
	// only.
	Channels int

	// Logger receives decode diagnostics. Nil keeps the codec silent.
	Logger *logrus.Logger
}

// Decoder is the contract every codec in the registry satisfies.
//
// Decode consumes one encoded packet and writes interleaved float32
// PCM into pcm, returning the number of samples produced per channel.
// Undersized output buffers are reported with an error matching
// opusdec.ErrBufferTooSmall.
type Decoder interface {
	Descriptor() Descriptor
	Decode(packet []byte, pcm []float32) (int, error)
	Reset()
}

// Factory constructs a codec instance from parameters.
type Factory func(p Parameters) (Decoder, error)

type registryEntry struct {
	desc    Descriptor
	factory Factory
}

// Registry maps codec IDs to decoder factories. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	order   []uint32
	entries map[uint32]registryEntry
}

// NewRegistry builds the built-in codec table. Opus registers first,
// followed by the G.711 companders.
func NewRegistry() *Registry {
	r := &Registry{entries: make(map[uint32]registryEntry)}
	r.mustRegister(opusDescriptor, newOpusCodec)
	r.mustRegister(pcmuDescriptor, newPCMUCodec)
	r.mustRegister(pcmaDescriptor, newPCMACodec)
	return r
}

// Register adds a codec under its descriptor ID. The ID must be
// unused.
func (r *Registry) Register(desc Descriptor, f Factory) error {
	if f == nil {
		return fmt.Errorf("codecs: register %s: nil factory", desc.Name)
	}
	if _, dup := r.entries[desc.ID]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateCodec, desc.ID)
	}
	r.entries[desc.ID] = registryEntry{desc: desc, factory: f}
	r.order = append(r.order, desc.ID)
	return nil
}

func (r *Registry) mustRegister(desc Descriptor, f Factory) {
	if err := r.Register(desc, f); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under id.
func (r *Registry) Lookup(id uint32) (Descriptor, bool) {
	e, ok := r.entries[id]
	return e.desc, ok
}

// New constructs a decoder for the codec registered under id.
func (r *Registry) New(id uint32, p Parameters) (Decoder, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, id)
	}
	return e.factory(p)
}

// Descriptors lists the registered codecs in registration order.
func (r *Registry) Descriptors() []Descriptor {
	descs := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		descs = append(descs, r.entries[id].desc)
	}
	return descs
}

// fieldLogger wraps l, substituting a discard logger for nil so codec
// code can log unconditionally.
func fieldLogger(l *logrus.Logger) logrus.FieldLogger {
	if l != nil {
		return l
	}
	silent := logrus.New()
	silent.SetOutput(io.Discard)
	return silent
}
