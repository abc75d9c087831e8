package codecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thesyncim/opusdec"
	"github.com/thesyncim/opusdec/codecs"
)

// celtPacket returns a deterministic CELT fullband 20 ms mono packet.
// The payload is arbitrary but fixed, so decoding it is reproducible.
func celtPacket() []byte {
	p := make([]byte, 50)
	p[0] = 0xF8
	for i := 1; i < len(p); i++ {
		p[i] = byte(i * 7)
	}
	return p
}

func TestNewRegistryBuiltins(t *testing.T) {
	reg := codecs.NewRegistry()

	descs := reg.Descriptors()
	require.Len(t, descs, 3)

	assert.Equal(t, codecs.Descriptor{ID: 111, Name: "opus", LongName: "Opus (RFC 6716)"}, descs[0],
		"opus must register first")
	assert.Equal(t, codecs.Descriptor{ID: 0, Name: "pcmu", LongName: "G.711 mu-law"}, descs[1])
	assert.Equal(t, codecs.Descriptor{ID: 8, Name: "pcma", LongName: "G.711 A-law"}, descs[2])

	for _, want := range descs {
		got, ok := reg.Lookup(want.ID)
		require.True(t, ok, "lookup %d", want.ID)
		assert.Equal(t, want, got)
	}

	_, ok := reg.Lookup(42)
	assert.False(t, ok)
}

func TestRegistryRegister(t *testing.T) {
	reg := codecs.NewRegistry()

	custom := codecs.Descriptor{ID: 96, Name: "l16", LongName: "Linear PCM"}
	factory := func(p codecs.Parameters) (codecs.Decoder, error) {
		return nil, codecs.ErrInvalidParameters
	}

	require.NoError(t, reg.Register(custom, factory))

	got, ok := reg.Lookup(96)
	require.True(t, ok)
	assert.Equal(t, custom, got)

	descs := reg.Descriptors()
	require.Len(t, descs, 4)
	assert.Equal(t, custom, descs[3], "registration order preserved")

	err := reg.Register(custom, factory)
	require.ErrorIs(t, err, codecs.ErrDuplicateCodec)

	err = reg.Register(codecs.Descriptor{ID: 97, Name: "bad"}, nil)
	require.Error(t, err)
}

func TestRegistryNewUnknownID(t *testing.T) {
	reg := codecs.NewRegistry()

	_, err := reg.New(42, codecs.Parameters{SampleRate: 48000, Channels: 1})
	require.ErrorIs(t, err, codecs.ErrUnknownCodec)
}

func TestDescriptorString(t *testing.T) {
	d := codecs.Descriptor{ID: 111, Name: "opus", LongName: "Opus (RFC 6716)"}
	assert.Equal(t, "opus (id 111)", d.String())
}

func TestOpusAdapterMatchesDirect(t *testing.T) {
	reg := codecs.NewRegistry()

	adapted, err := reg.New(111, codecs.Parameters{SampleRate: 48000, Channels: 1})
	require.NoError(t, err)

	direct, err := opusdec.NewDecoder(opusdec.DefaultDecoderConfig(48000, 1))
	require.NoError(t, err)

	pkt := celtPacket()
	got := make([]float32, 960)
	want := make([]float32, 960)

	var first []float32
	for i := 0; i < 4; i++ {
		n1, err := adapted.Decode(pkt, got)
		require.NoError(t, err)
		n2, err := direct.Decode(pkt, want)
		require.NoError(t, err)

		require.Equal(t, n2, n1, "frame %d: sample count", i)
		require.Equal(t, want, got, "frame %d: adapter output diverges from direct decode", i)

		if i == 0 {
			first = append([]float32(nil), got...)
		}
	}

	// Reset returns the adapter to its initial state: the next decode
	// reproduces the first frame bit-exactly.
	adapted.Reset()
	n, err := adapted.Decode(pkt, got)
	require.NoError(t, err)
	require.Equal(t, 960, n)
	require.Equal(t, first, got)
}

func TestOpusAdapterConcealsNilPacket(t *testing.T) {
	reg := codecs.NewRegistry()

	dec, err := reg.New(111, codecs.Parameters{SampleRate: 48000, Channels: 2})
	require.NoError(t, err)

	pcm := make([]float32, 2*960)
	n, err := dec.Decode(nil, pcm)
	require.NoError(t, err)
	assert.Equal(t, 960, n)
}

func TestOpusAdapterInvalidParameters(t *testing.T) {
	reg := codecs.NewRegistry()

	_, err := reg.New(111, codecs.Parameters{SampleRate: 44100, Channels: 1})
	require.ErrorIs(t, err, opusdec.ErrInvalidSampleRate)

	_, err = reg.New(111, codecs.Parameters{SampleRate: 48000, Channels: 3})
	require.ErrorIs(t, err, opusdec.ErrInvalidChannels)
}

func TestG711DecodeKnownValues(t *testing.T) {
	// Expected values from the CCITT G.711 reference expansion.
	tests := []struct {
		name  string
		id    uint32
		input []byte
		want  []int16
	}{
		{
			name:  "pcmu",
			id:    0,
			input: []byte{0x00, 0x80, 0xFF, 0x7F, 0x9A},
			want:  []int16{-32124, 32124, 0, 0, 10876},
		},
		{
			name:  "pcma",
			id:    8,
			input: []byte{0x55, 0xD5, 0x2A, 0xAA, 0x01},
			want:  []int16{-8, 8, -32256, 32256, -5248},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := codecs.NewRegistry()
			dec, err := reg.New(tt.id, codecs.Parameters{SampleRate: 8000, Channels: 1})
			require.NoError(t, err)

			pcm := make([]float32, len(tt.input))
			n, err := dec.Decode(tt.input, pcm)
			require.NoError(t, err)
			require.Equal(t, len(tt.input), n)

			for i, w := range tt.want {
				assert.Equal(t, float32(w)/32768, pcm[i], "sample %d", i)
			}
		})
	}
}

func TestG711InvalidParameters(t *testing.T) {
	reg := codecs.NewRegistry()

	for _, id := range []uint32{0, 8} {
		_, err := reg.New(id, codecs.Parameters{SampleRate: 48000, Channels: 1})
		require.ErrorIs(t, err, codecs.ErrInvalidParameters, "id %d: sample rate", id)

		_, err = reg.New(id, codecs.Parameters{SampleRate: 8000, Channels: 2})
		require.ErrorIs(t, err, codecs.ErrInvalidParameters, "id %d: channels", id)
	}
}

func TestG711BufferTooSmall(t *testing.T) {
	reg := codecs.NewRegistry()

	dec, err := reg.New(0, codecs.Parameters{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	pcm := make([]float32, 5)
	_, err = dec.Decode(make([]byte, 10), pcm)
	require.ErrorIs(t, err, opusdec.ErrBufferTooSmall)
}
