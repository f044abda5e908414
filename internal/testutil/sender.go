package testutil

import (
	"encoding/json"
	"sync"
)

// Sender records frames delivered to a fake connection
type Sender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

// NewSender creates a Sender that accepts every frame
func NewSender() *Sender {
	return &Sender{}
}

// Send records the frame unless the sender has been closed
func (s *Sender) Send(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.frames = append(s.frames, append([]byte(nil), data...))
	return true
}

// Close makes every later Send fail
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Frames returns a copy of the recorded frames
func (s *Sender) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

// Messages decodes every recorded frame as a JSON object
func (s *Sender) Messages() []map[string]any {
	frames := s.Frames()
	out := make([]map[string]any, 0, len(frames))
	for _, frame := range frames {
		var msg map[string]any
		if err := json.Unmarshal(frame, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

// Types returns the "type" field of every recorded message
func (s *Sender) Types() []string {
	msgs := s.Messages()
	out := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		t, _ := msg["type"].(string)
		out = append(out, t)
	}
	return out
}

// Last returns the most recent message, or nil
func (s *Sender) Last() map[string]any {
	msgs := s.Messages()
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset discards the recorded frames
func (s *Sender) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}
