package jitter

import "errors"

// ErrMalformedPacket is returned by a PacketDecoder when a payload
// cannot be parsed. ParseData never propagates it further than "stop
// parsing this packet and return bytes consumed so far".
var ErrMalformedPacket = errors.New("jitter: malformed packet")

// PacketDecoder is the capability interface a concrete stream type
// supplies to interpret its wire format: a virtual
// parseStreamProperties/parseAudioData pair (plus the header decode
// step ahead of them), expressed as a value passed to the stream at
// construction time instead of overridden methods.
type PacketDecoder interface {
	// DecodeHeader reads the packet type and sequence number from the
	// front of packet, returning the remaining bytes after the
	// sequence number.
	DecodeHeader(packet []byte) (packetType byte, sequenceNumber uint16, rest []byte, err error)

	// ParseStreamProperties reads whatever lies between the sequence
	// number and the audio payload, returning how many audio samples
	// the payload carries.
	ParseStreamProperties(packetType byte, rest []byte) (numAudioSamples int, payloadAfterProps []byte, err error)

	// ParseAudioData reads numAudioSamples samples from payload.
	ParseAudioData(packetType byte, payload []byte, numAudioSamples int) (samples []int16, err error)
}
