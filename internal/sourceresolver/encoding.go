package sourceresolver

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// DecodeSubtitleBytes detects the text encoding of a downloaded subtitle
// file by BOM first, then by trying strict UTF-8, GB18030 and GBK decodes in
// that order. No statistical encoding detection is done.
func DecodeSubtitleBytes(data []byte) string {
	if decoded, ok := decodeByBOM(data); ok {
		return decoded
	}
	for _, decode := range []func([]byte) (string, bool){
		decodeUTF8Strict,
		decodeGB18030,
		decodeGBK,
	} {
		if decoded, ok := decode(data); ok {
			return decoded
		}
	}
	// Fall back to lossy UTF-8; never fail the pipeline on an encoding guess.
	return string(data)
}

func decodeByBOM(data []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return string(data[3:]), true
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}):
		return decodeUTF16LE(data[2:]), true
	case bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return decodeUTF16BE(data[2:]), true
	}
	return "", false
}

func decodeUTF8Strict(data []byte) (string, bool) {
	if utf8.Valid(data) {
		return string(data), true
	}
	return "", false
}

// decodeGB18030 covers both gb18030 and, as a practical superset, gb2312
// text (gb18030 is backward compatible with gb2312's byte ranges).
func decodeGB18030(data []byte) (string, bool) {
	decoded, err := simplifiedchinese.GB18030.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func decodeGBK(data []byte) (string, bool) {
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

func decodeUTF16LE(b []byte) string {
	return decodeUTF16(b, true)
}

func decodeUTF16BE(b []byte) string {
	return decodeUTF16(b, false)
}

func decodeUTF16(b []byte, little bool) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	runes := make([]uint16, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		if little {
			runes = append(runes, uint16(b[i])|uint16(b[i+1])<<8)
		} else {
			runes = append(runes, uint16(b[i+1])|uint16(b[i])<<8)
		}
	}
	buf := make([]rune, 0, len(runes))
	for _, r := range runes {
		buf = append(buf, rune(r))
	}
	return string(buf)
}
