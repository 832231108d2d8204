package core

// itoa converts an integer to a string without the fmt package, which is too
// heavy for the firmware image.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}

	if negative {
		pos--
		buf[pos] = '-'
	}

	return string(buf[pos:])
}

const hexDigits = "0123456789ABCDEF"

// hex8 formats v as 0xNN
func hex8(v uint8) string {
	return string([]byte{'0', 'x', hexDigits[v>>4], hexDigits[v&0x0F]})
}

// hex16 formats v as 0xNNNN
func hex16(v uint16) string {
	return string([]byte{
		'0', 'x',
		hexDigits[v>>12], hexDigits[(v>>8)&0x0F],
		hexDigits[(v>>4)&0x0F], hexDigits[v&0x0F],
	})
}
