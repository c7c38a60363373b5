package audio

import "bytes"

const id3HeaderLen = 10

// StripID3 removes a leading ID3v2 tag (header, declared body and optional
// footer) so the remaining MP3 frames can be appended to another stream.
func StripID3(data []byte) []byte {
	if len(data) < id3HeaderLen || !bytes.HasPrefix(data, []byte("ID3")) {
		return data
	}
	size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
	total := id3HeaderLen + size
	if data[5]&0x10 != 0 {
		total += id3HeaderLen
	}
	if total >= len(data) {
		return nil
	}
	return data[total:]
}

// Concat joins synthesized chunks into one stream, keeping only the first
// chunk's tag.
func Concat(chunks [][]byte) []byte {
	var buf bytes.Buffer
	for i, chunk := range chunks {
		if i > 0 {
			chunk = StripID3(chunk)
		}
		buf.Write(chunk)
	}
	return buf.Bytes()
}
