// Package sound plays timer feedback on the terminal bell.
package sound

import (
	"fmt"
	"io"
	"sync"
)

const bell = "\a"

// Bell writes BEL characters to a terminal. The zero volume and mute both
// silence it.
type Bell struct {
	mu      sync.Mutex
	out     io.Writer
	volume  int
	muted   bool
	repeats int
}

func NewBell(out io.Writer, volume int, muted bool) *Bell {
	return &Bell{out: out, volume: volume, muted: muted, repeats: 3}
}

// SetLevel updates volume (0-100) and mute.
func (b *Bell) SetLevel(volume int, muted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.volume = volume
	b.muted = muted
}

func (b *Bell) PlayClick() error {
	return b.ring(1)
}

func (b *Bell) PlayAlarm() error {
	return b.ring(b.repeats)
}

func (b *Bell) ring(times int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.out == nil || b.muted || b.volume <= 0 {
		return nil
	}
	for i := 0; i < times; i++ {
		if _, err := io.WriteString(b.out, bell); err != nil {
			return fmt.Errorf("ring bell: %w", err)
		}
	}
	return nil
}
