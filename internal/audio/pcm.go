package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// TargetSampleRate is the rate the assessment service expects.
const TargetSampleRate = 16000

// MergeFrames concatenates buffered frames into one contiguous PCM buffer.
func MergeFrames(frames []Frame) []byte {
	var total int
	for _, f := range frames {
		total += len(f)
	}
	merged := make([]byte, 0, total)
	for _, f := range frames {
		merged = append(merged, f...)
	}
	return merged
}

// Resample16k converts mono s16le PCM from srcRate to 16kHz. Audio already
// at the target rate passes through untouched.
func Resample16k(pcm []byte, srcRate int) ([]byte, error) {
	if srcRate == TargetSampleRate {
		return pcm, nil
	}
	if srcRate <= 0 {
		return nil, fmt.Errorf("invalid source sample rate %d", srcRate)
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(TargetSampleRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	input := pcmToFloat64(pcm)
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resample error: %w", err)
	}
	return float64ToPCM(output), nil
}

// WAVEnvelope wraps mono s16le PCM in a minimal RIFF/WAVE header.
func WAVEnvelope(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	byteRate := sampleRate * 2 // mono, 2 bytes per sample

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))        // fmt chunk size
	binary.Write(&buf, binary.LittleEndian, uint16(1))         // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1))         // mono
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

func pcmToFloat64(pcm []byte) []float64 {
	n := len(pcm) / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		sample := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		out[i] = float64(sample) / 32768.0
	}
	return out
}

func float64ToPCM(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		var v int16
		switch {
		case s >= 1.0:
			v = 32767
		case s <= -1.0:
			v = -32768
		default:
			v = int16(s * 32767.0)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}
