// Package wire holds the client-facing encodings: the delimited measurement
// record, the fixed-size UDP probe datagram and the TCP batch frame.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jengzang/coverage-backend-go/internal/models"
)

const (
	// Separator joins the record fields.
	Separator = ";"
	// NullToken marks an absent optional field.
	NullToken = "null"
	// FieldCount is the number of fields the current schema knows about.
	FieldCount = 15
)

// Field positions within an encoded record.
const (
	fieldPacketID = iota
	fieldLatitude
	fieldLongitude
	fieldAccuracy
	fieldSpeed
	fieldBearing
	fieldRoundTripTime
	fieldServerReplyTime
	fieldSignalStrength
	fieldNetworkType
	fieldLinkDownstreamKbps
	fieldLinkUpstreamKbps
	fieldJitter
	fieldGsmAsuLevel
	fieldLteAsuLevel
)

var fieldNames = [FieldCount]string{
	"packetId", "latitude", "longitude", "accuracy", "speed", "bearing",
	"roundTripTime", "serverReplyTime", "signalStrength", "networkType",
	"linkDownstreamKbps", "linkUpstreamKbps", "jitter", "gsmAsuLevel", "lteAsuLevel",
}

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("wire: malformed record")

// DecodeError reports a required field that is missing or a field that does not parse.
type DecodeError struct {
	Field string
	Value string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("wire: field %s is required", e.Field)
	}
	return fmt.Sprintf("wire: field %s=%q: %v", e.Field, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Encode writes the record in the fixed field order. Absent optionals become NullToken.
func Encode(r models.MeasurementRecord) string {
	fields := [FieldCount]string{
		fieldPacketID:           strconv.FormatInt(int64(r.PacketID), 10),
		fieldLatitude:           formatFloat64(r.Latitude),
		fieldLongitude:          formatFloat64(r.Longitude),
		fieldAccuracy:           formatFloat32(r.Accuracy),
		fieldSpeed:              formatFloat32(r.Speed),
		fieldBearing:            formatFloat32(r.Bearing),
		fieldRoundTripTime:      optInt32(r.RoundTripTime),
		fieldServerReplyTime:    optInt64(r.ServerReplyTime),
		fieldSignalStrength:     optFloat32(r.SignalStrength),
		fieldNetworkType:        optString(r.NetworkType),
		fieldLinkDownstreamKbps: optInt32(r.LinkDownstreamKbps),
		fieldLinkUpstreamKbps:   optInt32(r.LinkUpstreamKbps),
		fieldJitter:             optFloat32(r.Jitter),
		fieldGsmAsuLevel:        optInt32(r.GsmAsuLevel),
		fieldLteAsuLevel:        optInt32(r.LteAsuLevel),
	}
	return strings.Join(fields[:], Separator)
}

// Decode parses an encoded record. Extra trailing fields from newer clients are
// ignored and fields missing from older clients decode as absent.
func Decode(s string) (models.MeasurementRecord, error) {
	p := parser{fields: strings.Split(s, Separator)}

	r := models.MeasurementRecord{
		PacketID:  p.requiredInt32(fieldPacketID),
		Latitude:  p.requiredFloat64(fieldLatitude),
		Longitude: p.requiredFloat64(fieldLongitude),
		Accuracy:  p.requiredFloat32(fieldAccuracy),
		Speed:     p.requiredFloat32(fieldSpeed),
		Bearing:   p.requiredFloat32(fieldBearing),

		RoundTripTime:      p.optionalInt32(fieldRoundTripTime),
		ServerReplyTime:    p.optionalInt64(fieldServerReplyTime),
		SignalStrength:     p.optionalFloat32(fieldSignalStrength),
		NetworkType:        p.optionalString(fieldNetworkType),
		LinkDownstreamKbps: p.optionalInt32(fieldLinkDownstreamKbps),
		LinkUpstreamKbps:   p.optionalInt32(fieldLinkUpstreamKbps),
		Jitter:             p.optionalFloat32(fieldJitter),
		GsmAsuLevel:        p.optionalInt32(fieldGsmAsuLevel),
		LteAsuLevel:        p.optionalInt32(fieldLteAsuLevel),
	}
	if p.err != nil {
		return models.MeasurementRecord{}, p.err
	}
	return r, nil
}

// parser keeps the first error so Decode reads as a flat field list.
type parser struct {
	fields []string
	err    error
}

func (p *parser) raw(i int) (string, bool) {
	if i >= len(p.fields) || p.fields[i] == NullToken {
		return "", false
	}
	return p.fields[i], true
}

func (p *parser) fail(i int, value string, err error) {
	if p.err == nil {
		p.err = &DecodeError{Field: fieldNames[i], Value: value, Err: err}
	}
}

func (p *parser) required(i int) (string, bool) {
	s, ok := p.raw(i)
	if !ok && p.err == nil {
		p.err = &DecodeError{Field: fieldNames[i]}
	}
	return s, ok
}

func (p *parser) requiredInt32(i int) int32 {
	s, ok := p.required(i)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		p.fail(i, s, err)
	}
	return int32(v)
}

func (p *parser) requiredFloat64(i int) float64 {
	s, ok := p.required(i)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(i, s, err)
	}
	return v
}

func (p *parser) requiredFloat32(i int) float32 {
	s, ok := p.required(i)
	if !ok {
		return 0
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		p.fail(i, s, err)
	}
	return float32(v)
}

func (p *parser) optionalInt32(i int) *int32 {
	s, ok := p.raw(i)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		p.fail(i, s, err)
		return nil
	}
	out := int32(v)
	return &out
}

func (p *parser) optionalInt64(i int) *int64 {
	s, ok := p.raw(i)
	if !ok {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		p.fail(i, s, err)
		return nil
	}
	return &v
}

func (p *parser) optionalFloat32(i int) *float32 {
	s, ok := p.raw(i)
	if !ok {
		return nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		p.fail(i, s, err)
		return nil
	}
	out := float32(v)
	return &out
}

func (p *parser) optionalString(i int) *string {
	s, ok := p.raw(i)
	if !ok {
		return nil
	}
	return &s
}

func formatFloat64(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func formatFloat32(v float32) string { return strconv.FormatFloat(float64(v), 'g', -1, 32) }

func optInt32(p *int32) string {
	if p == nil {
		return NullToken
	}
	return strconv.FormatInt(int64(*p), 10)
}

func optInt64(p *int64) string {
	if p == nil {
		return NullToken
	}
	return strconv.FormatInt(*p, 10)
}

func optFloat32(p *float32) string {
	if p == nil {
		return NullToken
	}
	return formatFloat32(*p)
}

func optString(p *string) string {
	if p == nil {
		return NullToken
	}
	return *p
}
