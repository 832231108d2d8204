package protocol

import "errors"

// vlqMaxLen is the longest encoding of a 32-bit value
const vlqMaxLen = 5

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// EncodeVLQInt writes v as a variable length quantity: seven bits per byte,
// most significant group first, high bit set on all but the last byte.
// Values in [-32, 96) take a single byte.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var enc [vlqMaxLen]byte
	n := 0
	for shift := 28; shift > 0; shift -= 7 {
		// one more group is needed when v is outside [-lim, 3*lim)
		lim := int32(1) << (shift - 2)
		if v < -lim || v >= 3*lim {
			enc[n] = byte(v>>shift)&0x7F | 0x80
			n++
		}
	}
	enc[n] = byte(v) & 0x7F
	output.Output(enc[:n+1])
}

// EncodeVLQUint encodes an unsigned integer to VLQ format
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a signed VLQ and advances data past the consumed bytes
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	b := (*data)[0]
	v := uint32(b & 0x7F)
	if b&0x60 == 0x60 {
		v |= ^uint32(0x1F) // first group carries the sign
	}

	used := 1
	for ; b&0x80 != 0; used++ {
		if used == vlqMaxLen {
			return 0, ErrInvalidVLQ
		}
		if used >= len(*data) {
			return 0, ErrBufferTooSmall
		}
		b = (*data)[used]
		v = v<<7 | uint32(b&0x7F)
	}

	*data = (*data)[used:]
	return int32(v), nil
}

// DecodeVLQUint decodes a VLQ unsigned integer from the data slice
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// EncodeVLQBytes encodes a byte array with length prefix
func EncodeVLQBytes(output OutputBuffer, data []byte) {
	EncodeVLQUint(output, uint32(len(data)))
	output.Output(data)
}

// DecodeVLQBytes decodes a length-prefixed byte array.
// The result aliases data.
func DecodeVLQBytes(data *[]byte) ([]byte, error) {
	length, err := DecodeVLQUint(data)
	if err != nil {
		return nil, err
	}
	if len(*data) < int(length) {
		return nil, ErrBufferTooSmall
	}
	result := (*data)[:length]
	*data = (*data)[length:]
	return result, nil
}
