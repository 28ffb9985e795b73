package jni

import (
	"unicode/utf16"
	"unicode/utf8"
)

// NewStringUTF and GetStringUTFChars speak modified UTF-8: U+0000 takes two
// bytes and every surrogate is encoded on its own in three bytes, so a Java
// string with unpaired surrogates still has an encoding.

// EncodeModifiedUTF8 encodes UTF-16 code units as modified UTF-8.
func EncodeModifiedUTF8(units []uint16) string {
	b := make([]byte, 0, len(units))
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			b = append(b, byte(u))
		case u < 0x800:
			b = append(b, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
		default:
			b = append(b, 0xE0|byte(u>>12), 0x80|byte(u>>6&0x3F), 0x80|byte(u&0x3F))
		}
	}
	return string(b)
}

// DecodeModifiedUTF8 returns the UTF-16 code units of s. Standard four-byte
// UTF-8 sequences are accepted too. Malformed bytes decode to U+FFFD.
func DecodeModifiedUTF8(s string) []uint16 {
	out := make([]uint16, 0, len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c < 0x80:
			out = append(out, uint16(c))
			i++
		case c&0xE0 == 0xC0 && i+1 < len(s) && cont(s[i+1]):
			out = append(out, uint16(c&0x1F)<<6|uint16(s[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0 && i+2 < len(s) && cont(s[i+1]) && cont(s[i+2]):
			out = append(out, uint16(c&0x0F)<<12|uint16(s[i+1]&0x3F)<<6|uint16(s[i+2]&0x3F))
			i += 3
		case c&0xF8 == 0xF0:
			r, n := utf8.DecodeRuneInString(s[i:])
			if n == 1 {
				out = append(out, utf8.RuneError)
				i++
				continue
			}
			r1, r2 := utf16.EncodeRune(r)
			out = append(out, uint16(r1), uint16(r2))
			i += n
		default:
			out = append(out, utf8.RuneError)
			i++
		}
	}
	return out
}

func cont(b byte) bool { return b&0xC0 == 0x80 }

// GoString decodes modified UTF-8 into a Go string. Unpaired surrogates
// become U+FFFD.
func GoString(s string) string {
	if plain(s) {
		return s
	}
	return string(utf16.Decode(DecodeModifiedUTF8(s)))
}

// ModifiedUTF8 encodes a Go string for NewStringUTF.
func ModifiedUTF8(s string) string {
	if plain(s) {
		return s
	}
	return EncodeModifiedUTF8(utf16.Encode([]rune(s)))
}

// plain reports whether s is ASCII without NUL, which every encoding here
// leaves unchanged.
func plain(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 || s[i] >= 0x80 {
			return false
		}
	}
	return true
}
