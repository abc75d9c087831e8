package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thesyncim/opusdec"
	"github.com/thesyncim/opusdec/container/ogg"
	"github.com/thesyncim/opusdec/testvectors"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <input>",
	Short: "Decode an Opus file to WAV",
	Long: `Decode an Ogg Opus file to a 16-bit PCM WAV file.

The output rate defaults to 48 kHz; --rate selects any other rate the
decoder supports. Pre-skip and the end trim from the Ogg granule
positions are applied, as is the output gain stored in the
identification header.

With --raw the input is an opus_demo bitstream (the framing used by
the RFC 8251 test vectors) instead of an Ogg stream. Raw input carries
no header, so --channels defaults to mono and no gain or trimming is
applied. Zero-length entries mark lost packets and are concealed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringP("output", "o", "", "output WAV path (default: input path with a .wav extension)")
	decodeCmd.Flags().IntP("rate", "r", 48000, "output sample rate in Hz (8000, 12000, 16000, 24000 or 48000)")
	decodeCmd.Flags().IntP("channels", "c", 0, "output channels, 1 or 2 (default: stream header, mono for --raw)")
	decodeCmd.Flags().Float64("gain", 0, "extra output gain in dB, applied on top of the header gain")
	decodeCmd.Flags().Bool("raw", false, "treat the input as an opus_demo bitstream")
}

func runDecode(cmd *cobra.Command, args []string) error {
	viper.BindPFlag("decode.output", cmd.Flags().Lookup("output"))
	viper.BindPFlag("decode.rate", cmd.Flags().Lookup("rate"))
	viper.BindPFlag("decode.channels", cmd.Flags().Lookup("channels"))
	viper.BindPFlag("decode.gain", cmd.Flags().Lookup("gain"))
	viper.BindPFlag("decode.raw", cmd.Flags().Lookup("raw"))

	input := args[0]
	output := viper.GetString("decode.output")
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".wav"
	}
	rate := viper.GetInt("decode.rate")
	channels := viper.GetInt("decode.channels")
	gain := viper.GetFloat64("decode.gain")

	if viper.GetBool("decode.raw") {
		return decodeRaw(input, output, rate, channels, gain)
	}
	return decodeOgg(input, output, rate, channels, gain)
}

func decodeOgg(input, output string, rate, channels int, gainDB float64) error {
	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	stream, err := ogg.NewReader(in)
	if err != nil {
		return fmt.Errorf("%s: %w", input, err)
	}
	if channels == 0 {
		channels = int(stream.Channels())
	}
	if channels > 2 {
		return fmt.Errorf("%s: %d-channel streams are not supported", input, channels)
	}

	cfg := opusdec.DefaultDecoderConfig(rate, channels)
	cfg.Gain = int(stream.OutputGain()) + gainQ78(gainDB)
	if viper.GetBool("verbose") {
		cfg.Logger = log
	}
	dec, err := opusdec.NewDecoder(cfg)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"channels": channels,
		"rate":     rate,
		"pre_skip": stream.PreSkip(),
		"gain_q8":  cfg.Gain,
		"vendor":   stream.Tags.Vendor,
	}).Debug("stream opened")

	sink, err := newWavSink(output, rate, channels)
	if err != nil {
		return err
	}

	stats, pumpErr := pumpOggPackets(stream, dec, sink, rate, channels)
	if err := sink.Close(); err != nil && pumpErr == nil {
		pumpErr = err
	}
	if pumpErr != nil {
		return pumpErr
	}

	if n := stream.CorruptPages(); n > 0 {
		log.WithField("pages", n).Warn("dropped pages with checksum failures")
	}
	logSummary(output, rate, stats)
	return nil
}

type pumpStats struct {
	packets int
	skipped int
	samples int64
}

// pumpOggPackets decodes the stream into sink. Pre-skip samples are
// discarded up front and the tail past the final granule position is
// trimmed, both scaled from 48kHz to the output rate (RFC 7845
// Section 4.1).
func pumpOggPackets(stream *ogg.Reader, dec *opusdec.Decoder, sink *wavSink, rate, channels int) (pumpStats, error) {
	var stats pumpStats
	var written, valid int64
	validKnown := false
	skip := int(stream.PreSkip()) * rate / 48000

	pcm := make([]int16, dec.MaxPacketSamples()*channels)
	for {
		pkt, _, err := stream.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, ogg.ErrUnexpectedEOS) {
			log.Warn("stream truncated before the end-of-stream page")
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read packet: %w", err)
		}
		stats.packets++

		n, err := dec.DecodeInt16(pkt, pcm)
		if err != nil {
			stats.skipped++
			log.WithError(err).WithField("packet", stats.packets).Warn("skipping undecodable packet")
			continue
		}
		samples := pcm[:n*channels]

		if skip > 0 {
			drop := n
			if drop > skip {
				drop = skip
			}
			samples = samples[drop*channels:]
			skip -= drop
		}
		if stream.EOF() && !validKnown {
			valid = trimmedLength(stream.GranulePos(), stream.PreSkip(), rate)
			validKnown = true
		}
		if validKnown {
			remain := valid - written
			if remain < 0 {
				remain = 0
			}
			if int64(len(samples)) > remain*int64(channels) {
				samples = samples[:remain*int64(channels)]
			}
		}
		if len(samples) == 0 {
			continue
		}
		if err := sink.write(samples); err != nil {
			return stats, err
		}
		written += int64(len(samples) / channels)
	}
	stats.samples = written
	return stats, nil
}

func decodeRaw(input, output string, rate, channels int, gainDB float64) error {
	if channels == 0 {
		channels = 1
	}
	packets, err := testvectors.ReadBitstreamFile(input)
	if err != nil {
		return err
	}

	cfg := opusdec.DefaultDecoderConfig(rate, channels)
	cfg.Gain = gainQ78(gainDB)
	if viper.GetBool("verbose") {
		cfg.Logger = log
	}
	dec, err := opusdec.NewDecoder(cfg)
	if err != nil {
		return err
	}

	sink, err := newWavSink(output, rate, channels)
	if err != nil {
		return err
	}

	var stats pumpStats
	rangeMismatches := 0
	pcm := make([]int16, dec.MaxPacketSamples()*channels)
	var pumpErr error
	for i, pkt := range packets {
		stats.packets++
		n, err := dec.DecodeInt16(pkt.Data, pcm)
		if err != nil {
			stats.skipped++
			log.WithError(err).WithField("packet", i).Warn("skipping undecodable packet")
			continue
		}
		if len(pkt.Data) > 0 && dec.FinalRange() != pkt.FinalRange {
			rangeMismatches++
			log.WithFields(logrus.Fields{
				"packet": i,
				"got":    fmt.Sprintf("0x%08X", dec.FinalRange()),
				"want":   fmt.Sprintf("0x%08X", pkt.FinalRange),
			}).Debug("final range mismatch")
		}
		if err := sink.write(pcm[:n*channels]); err != nil {
			pumpErr = err
			break
		}
		stats.samples += int64(n)
	}
	if err := sink.Close(); err != nil && pumpErr == nil {
		pumpErr = err
	}
	if pumpErr != nil {
		return pumpErr
	}

	if rangeMismatches > 0 {
		log.WithField("packets", rangeMismatches).Warn("final range mismatches against the bitstream")
	}
	logSummary(output, rate, stats)
	return nil
}

func logSummary(output string, rate int, stats pumpStats) {
	dur := time.Duration(stats.samples * int64(time.Second) / int64(rate))
	fields := logrus.Fields{
		"packets":  stats.packets,
		"samples":  stats.samples,
		"duration": dur.Round(time.Millisecond).String(),
		"output":   output,
	}
	if stats.skipped > 0 {
		fields["skipped"] = stats.skipped
	}
	log.WithFields(fields).Info("decode complete")
}

// gainQ78 converts a gain in dB to the Q7.8 fixed-point form the
// decoder and the Ogg identification header use.
func gainQ78(db float64) int {
	return int(math.Round(db * 256))
}

// trimmedLength converts the final granule position into a sample
// count at the output rate with pre-skip removed. An unset granule of
// ^uint64(0) leaves the stream untrimmed.
func trimmedLength(granule uint64, preSkip uint16, rate int) int64 {
	if granule == ^uint64(0) {
		return math.MaxInt64
	}
	if granule <= uint64(preSkip) {
		return 0
	}
	total := granule - uint64(preSkip)
	if total > uint64(math.MaxInt64)/48000 {
		total = uint64(math.MaxInt64) / 48000
	}
	return int64(total) * int64(rate) / 48000
}

// wavSink writes interleaved int16 PCM to a 16-bit WAV file.
type wavSink struct {
	f   *os.File
	enc *wav.Encoder
	buf *audio.IntBuffer
}

func newWavSink(path string, rate, channels int) (*wavSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &wavSink{
		f:   f,
		enc: wav.NewEncoder(f, rate, 16, channels, 1),
		buf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
			SourceBitDepth: 16,
		},
	}, nil
}

func (s *wavSink) write(samples []int16) error {
	s.buf.Data = s.buf.Data[:0]
	for _, v := range samples {
		s.buf.Data = append(s.buf.Data, int(v))
	}
	return s.enc.Write(s.buf)
}

// Close finalizes the WAV header and closes the file.
func (s *wavSink) Close() error {
	err := s.enc.Close()
	if cerr := s.f.Close(); err == nil {
		err = cerr
	}
	return err
}
