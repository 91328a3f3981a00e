// Package pcm converts between float samples, 16-bit little-endian PCM
// and the base64 text form the live transport carries.
package pcm

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	InputSampleRate  = 16000
	OutputSampleRate = 24000
	Channels         = 1
	BitsPerSample    = 16
	BytesPerSample   = BitsPerSample / 8

	// BlockSize is the fixed capture block, in samples. 4096 at 16 kHz
	// is 256 ms per block.
	BlockSize = 4096
)

var ErrOddLength = errors.New("pcm: odd-length byte input")

// Encode clamps each sample to [-1, 1], scales to int16 and packs
// little-endian.
func Encode(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[i*BytesPerSample:], uint16(int16(s*0x7FFF)))
	}
	return out
}

// Decode unpacks little-endian int16 samples and rescales to [-1, 1].
func Decode(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}
	samples := make([]float32, len(data)/BytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// MarshalBase64 encodes raw PCM bytes for JSON transport.
func MarshalBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// UnmarshalBase64 decodes a transport payload back to raw PCM bytes.
// The result is validated for sample alignment.
func UnmarshalBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("pcm: base64 decode: %w", err)
	}
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}
	return data, nil
}

// Duration reports the play time of raw mono PCM bytes at the given rate.
func Duration(n int, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / BytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
