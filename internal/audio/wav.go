package audio

import "encoding/binary"

const wavHeaderSize = 44

// EncodeWAV prefixes pcm with a 44-byte RIFF/WAVE header for the stream
// format.
func EncodeWAV(pcm []byte) []byte {
	out := make([]byte, wavHeaderSize+len(pcm))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], Channels)
	binary.LittleEndian.PutUint32(out[24:28], SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], BytesPerSecond)
	binary.LittleEndian.PutUint16(out[32:34], Channels*SampleWidth)
	binary.LittleEndian.PutUint16(out[34:36], SampleWidth*8)

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)

	return out
}
