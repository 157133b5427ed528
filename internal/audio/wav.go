package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PCM holds raw little-endian 16-bit samples plus their format.
type PCM struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// EncodeWAV wraps raw little-endian PCM bytes in a minimal RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, 44+len(pcm))
	copy(out[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], []byte("WAVE"))
	copy(out[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[44:], pcm)
	return out
}

// DecodeWAV extracts 16-bit PCM from a RIFF/WAVE container. Only uncompressed
// s16le payloads are accepted; chunk order beyond fmt-before-data is not assumed.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("not a RIFF/WAVE stream")
	}

	var (
		pcm      PCM
		haveFmt  bool
		haveData bool
	)

	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkLen > len(data) {
			chunkLen = len(data) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return PCM{}, errors.New("wav fmt chunk truncated")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return PCM{}, fmt.Errorf("unsupported wav audio format %d", format)
			}
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if bits != 16 {
				return PCM{}, fmt.Errorf("unsupported wav sample width %d bits", bits)
			}
			pcm.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			pcm.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			haveFmt = true
		case "data":
			pcm.Data = append([]byte(nil), data[body:body+chunkLen]...)
			haveData = true
		}

		// Chunks are word-aligned.
		offset = body + chunkLen
		if chunkLen%2 == 1 {
			offset++
		}
	}

	if !haveFmt {
		return PCM{}, errors.New("wav stream missing fmt chunk")
	}
	if !haveData {
		return PCM{}, errors.New("wav stream missing data chunk")
	}
	if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
		return PCM{}, errors.New("wav stream has invalid format parameters")
	}
	return pcm, nil
}
