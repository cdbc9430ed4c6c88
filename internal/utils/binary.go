package utils

import "unicode/utf8"

// DefaultBinarySniffLength is the number of leading bytes inspected when
// deciding whether content is binary.
const DefaultBinarySniffLength = 8000

// IsBinary reports whether the provided byte slice appears to contain binary data.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if !utf8.Valid(data) {
		return true
	}
	for _, byteValue := range data {
		if byteValue == 0 {
			return true
		}
	}
	return false
}

// IsBinarySample applies IsBinary to at most sniffLength leading bytes of
// content. A non-positive sniffLength falls back to DefaultBinarySniffLength.
// The cut backs off to a rune boundary so a multi-byte sequence split by the
// sample window is not mistaken for binary data.
func IsBinarySample(content []byte, sniffLength int) bool {
	if sniffLength <= 0 {
		sniffLength = DefaultBinarySniffLength
	}
	if len(content) > sniffLength {
		content = content[:sniffLength]
		for trimmed := 0; trimmed < utf8.UTFMax-1 && len(content) > 0; trimmed++ {
			lastRune, _ := utf8.DecodeLastRune(content)
			if lastRune != utf8.RuneError {
				break
			}
			content = content[:len(content)-1]
		}
	}
	return IsBinary(content)
}
