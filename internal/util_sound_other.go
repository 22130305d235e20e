//go:build !linux

package internal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

// SoundEvent represents different types of sound events in the client
type SoundEvent int

const (
	SoundConnected SoundEvent = iota
	SoundDisconnected
	SoundStanza
	SoundError
)

const sampleRate = beep.SampleRate(44100)

// tone is a sequence of short sine beeps.
type tone struct {
	freqs []float64
	each  time.Duration
}

var tones = map[SoundEvent]tone{
	SoundConnected:    {freqs: []float64{523.25, 659.25, 783.99}, each: 70 * time.Millisecond},
	SoundDisconnected: {freqs: []float64{783.99, 523.25}, each: 90 * time.Millisecond},
	SoundStanza:       {freqs: []float64{880}, each: 40 * time.Millisecond},
	SoundError:        {freqs: []float64{220, 196}, each: 120 * time.Millisecond},
}

// SoundPlayer manages sound playback for various client events
type SoundPlayer struct {
	enabled bool
	sounds  map[SoundEvent]*beep.Buffer
	mu      sync.Mutex
}

// NewSoundPlayer creates and initializes a new sound player.
// Speaker initialization failure is fatal; tone synthesis failures are non-fatal.
func NewSoundPlayer(enabled bool) (*SoundPlayer, error) {
	sp := &SoundPlayer{
		enabled: enabled,
		sounds:  make(map[SoundEvent]*beep.Buffer),
	}

	if err := speaker.Init(sampleRate, sampleRate.N(50*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}

	var loadErrs []error
	for event, t := range tones {
		if err := sp.loadTone(event, t); err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	return sp, errors.Join(loadErrs...)
}

// loadTone synthesises t into a buffer
func (sp *SoundPlayer) loadTone(event SoundEvent, t tone) error {
	buffer := beep.NewBuffer(beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2})
	for _, f := range t.freqs {
		s, err := generators.SineTone(sampleRate, f)
		if err != nil {
			return fmt.Errorf("tone %.2fHz: %w", f, err)
		}
		buffer.Append(beep.Take(sampleRate.N(t.each), s))
	}
	sp.sounds[event] = buffer
	return nil
}

// PlayAsync plays a sound asynchronously without blocking
func (sp *SoundPlayer) PlayAsync(event SoundEvent) {
	if sp == nil {
		return
	}

	sp.mu.Lock()
	enabled := sp.enabled
	buffer, exists := sp.sounds[event]
	sp.mu.Unlock()

	if !enabled || !exists {
		return
	}

	// Play sound in a goroutine to avoid blocking
	go func() {
		streamer := buffer.Streamer(0, buffer.Len())
		done := make(chan bool, 1)

		speaker.Play(beep.Seq(streamer, beep.Callback(func() {
			done <- true
		})))

		// Wait for playback to complete with timeout to prevent goroutine leak
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}()
}

// SetEnabled enables or disables sound playback
func (sp *SoundPlayer) SetEnabled(enabled bool) {
	if sp == nil {
		return
	}
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.enabled = enabled
}

// Close cleans up the sound player resources
func (sp *SoundPlayer) Close() {
	if sp == nil {
		return
	}
	speaker.Clear()
}
