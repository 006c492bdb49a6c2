// Package wire implements the packet boundary between the network
// transport and the jitter buffer core in pkg/jitter: it decodes the
// RTP-carried header into the (type, sequenceNumber, payload) tuple
// InboundStream.ParseData needs, and provides the default raw-PCM16
// audio decoder.
//
// The concrete byte layout of anything beyond the RTP header is
// intentionally left to the PacketDecoder implementation; this
// package's RawPCM16Decoder is the "payload is raw audio samples"
// default, built around *rtp.Packet as the unit handed to the buffer.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/pion/rtp"

	"github.com/binaryvr/hifi/pkg/jitter"
)

// RawPCM16Decoder is a jitter.PacketDecoder that treats every RTP
// packet's payload as raw little-endian PCM16 samples with no stream
// properties in between.
type RawPCM16Decoder struct{}

var _ jitter.PacketDecoder = RawPCM16Decoder{}

// DecodeHeader unmarshals an RTP packet and returns its payload type,
// sequence number, and payload.
func (RawPCM16Decoder) DecodeHeader(packet []byte) (packetType byte, sequenceNumber uint16, rest []byte, err error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(packet); err != nil {
		return 0, 0, nil, fmt.Errorf("%w: rtp header: %v", jitter.ErrMalformedPacket, err)
	}
	return pkt.PayloadType, pkt.SequenceNumber, pkt.Payload, nil
}

// ParseStreamProperties reports that the entire payload is audio
// samples: numAudioSamples is derived from the payload length, and no
// bytes are consumed ahead of the audio data.
func (RawPCM16Decoder) ParseStreamProperties(packetType byte, rest []byte) (numAudioSamples int, payloadAfterProps []byte, err error) {
	if len(rest)%2 != 0 {
		return 0, nil, fmt.Errorf("%w: odd-length PCM16 payload (%d bytes)", jitter.ErrMalformedPacket, len(rest))
	}
	return len(rest) / 2, rest, nil
}

// ParseAudioData decodes numAudioSamples little-endian int16 samples
// directly from payload: each byte is read exactly once into a
// freshly-allocated out, so there's no reused buffer for a pooled
// scratch copy to protect against.
func (RawPCM16Decoder) ParseAudioData(packetType byte, payload []byte, numAudioSamples int) (samples []int16, err error) {
	need := numAudioSamples * 2
	if len(payload) < need {
		return nil, fmt.Errorf("%w: expected %d PCM16 bytes, got %d", jitter.ErrMalformedPacket, need, len(payload))
	}

	out := make([]int16, numAudioSamples)
	for i := 0; i < numAudioSamples; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(payload[i*2 : i*2+2]))
	}
	return out, nil
}
