package core

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}

	negative := n < 0
	if negative {
		n = -n
	}

	// Count digits
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	// Add space for negative sign
	if negative {
		digits++
	}

	// Build string from right to left
	buf := make([]byte, digits)
	pos := digits - 1

	for n > 0 {
		buf[pos] = byte('0' + n%10)
		n /= 10
		pos--
	}

	if negative {
		buf[0] = '-'
	}

	return string(buf)
}

// utoa converts an unsigned integer to a string
func utoa(n uint32) string {
	if n == 0 {
		return "0"
	}

	// Count digits
	temp := n
	digits := 0
	for temp > 0 {
		digits++
		temp /= 10
	}

	// Build string from right to left
	buf := make([]byte, digits)
	pos := digits - 1

	for n > 0 {
		buf[pos] = byte('0' + n%10)
		n /= 10
		pos--
	}

	return string(buf)
}

// Itoa is the exported form of itoa for packages that avoid fmt on tinygo
func Itoa(n int) string {
	return itoa(n)
}

// Ftoa formats f with the given number of decimals without fmt
func Ftoa(f float64, decimals int) string {
	neg := f < 0
	if neg {
		f = -f
	}
	scale := 1
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	n := int(f*float64(scale) + 0.5)
	whole := itoa(n / scale)
	if neg && n != 0 {
		whole = "-" + whole
	}
	if decimals == 0 {
		return whole
	}
	frac := itoa(n % scale)
	for len(frac) < decimals {
		frac = "0" + frac
	}
	return whole + "." + frac
}
