package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ProbeSize is the fixed length of probe datagrams in both directions.
// Clients size their receive buffers to it, so replies are zero padded.
const ProbeSize = 32

// ErrProtocol is matched by every framing or datagram error.
var ErrProtocol = errors.New("wire: protocol violation")

// ErrProbeSize is returned for datagrams that are not exactly ProbeSize bytes.
var ErrProbeSize = fmt.Errorf("%w: probe datagram must be %d bytes", ErrProtocol, ProbeSize)

// EncodeProbe builds a client probe carrying packetID. Bytes 4..31 are padding.
func EncodeProbe(packetID int32) []byte {
	b := make([]byte, ProbeSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(packetID))
	return b
}

// DecodeProbe returns the client packet id of a probe.
func DecodeProbe(b []byte) (int32, error) {
	if len(b) != ProbeSize {
		return 0, ErrProbeSize
	}
	return int32(binary.BigEndian.Uint32(b[0:4])), nil
}

// EncodeProbeReply echoes packetID followed by the server timestamp in milliseconds.
func EncodeProbeReply(packetID int32, serverMillis int64) []byte {
	b := make([]byte, ProbeSize)
	binary.BigEndian.PutUint32(b[0:4], uint32(packetID))
	binary.BigEndian.PutUint64(b[4:12], uint64(serverMillis))
	return b
}

// DecodeProbeReply splits a server reply into packet id and server timestamp.
func DecodeProbeReply(b []byte) (packetID int32, serverMillis int64, err error) {
	if len(b) != ProbeSize {
		return 0, 0, ErrProbeSize
	}
	packetID = int32(binary.BigEndian.Uint32(b[0:4]))
	serverMillis = int64(binary.BigEndian.Uint64(b[4:12]))
	return packetID, serverMillis, nil
}
