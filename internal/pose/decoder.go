package pose

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 4 << 20

// Frame is one decoded line of a pose stream.
type Frame struct {
	Index     int
	Time      float64
	Timed     bool
	Landmarks []Landmark
	Joints    map[string]Landmark
}

type wireFrame struct {
	T         *float64            `json:"t"`
	Landmarks []Landmark          `json:"landmarks"`
	Joints    map[string]Landmark `json:"joints"`
}

// Decoder reads JSON Lines pose streams.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
	index   int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Decoder{scanner: scanner}
}

// Next returns the next frame, or io.EOF when the stream is exhausted.
// Blank lines are skipped.
func (d *Decoder) Next() (Frame, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}
		frame, err := DecodeFrame([]byte(text))
		if err != nil {
			return Frame{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		frame.Index = d.index
		d.index++
		return frame, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("failed to read pose stream: %w", err)
	}
	return Frame{}, io.EOF
}

// DecodeFrame parses a single JSON frame object.
func DecodeFrame(data []byte) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		return Frame{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	frame := Frame{
		Landmarks: wf.Landmarks,
		Joints:    wf.Joints,
	}
	if wf.T != nil {
		if *wf.T < 0 {
			return Frame{}, fmt.Errorf("frame time must be >= 0, got %v", *wf.T)
		}
		frame.Time = *wf.T
		frame.Timed = true
	}
	return frame, nil
}

// ReadAll decodes every frame from r.
func ReadAll(r io.Reader) ([]Frame, error) {
	dec := NewDecoder(r)
	var frames []Frame
	for {
		frame, err := dec.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
}
