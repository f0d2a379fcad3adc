package uievent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClass_Interrupts(t *testing.T) {
	interrupting := map[Class]bool{
		ClassResize:         true,
		ClassKeyboard:       true,
		ClassCharacter:      true,
		ClassModifiers:      true,
		ClassMouseButton:    true,
		ClassCursorMoved:    true,
		ClassFocus:          true,
		ClassMouseWheel:     true,
		ClassCloseRequested: true,
	}
	for c := ClassUnknown; c <= ClassUser; c++ {
		assert.Equal(t, interrupting[c], c.Interrupts(), c.String())
	}
	assert.False(t, Class(200).Interrupts())
	assert.Equal(t, "Class(200)", Class(200).String())
}

func TestBuffer_Ordering(t *testing.T) {
	b := NewBuffer()
	b.Append(Event{Class: ClassKeyboard, Payload: "E1"})
	b.Append(Event{Class: ClassMouseButton, Payload: "E2"})
	b.Append(Event{Class: ClassResize, Payload: "E3"})

	events := b.Drain()
	require.Len(t, events, 3)
	assert.Equal(t, "E1", events[0].Payload)
	assert.Equal(t, "E2", events[1].Payload)
	assert.Equal(t, "E3", events[2].Payload)
	assert.Less(t, events[0].Seq, events[1].Seq)
	assert.Less(t, events[1].Seq, events[2].Seq)
}

func TestBuffer_DrainTwice(t *testing.T) {
	b := NewBuffer()
	b.Append(Event{Class: ClassFocus})
	assert.Len(t, b.Drain(), 1)
	assert.Empty(t, b.Drain())
	assert.Equal(t, 0, b.Len())
}

func TestBuffer_TryDrainContended(t *testing.T) {
	b := NewBuffer()
	b.Append(Event{Class: ClassFocus})

	b.mu.Lock()
	events, ok := b.TryDrain()
	b.mu.Unlock()
	assert.False(t, ok)
	assert.Nil(t, events)

	events, ok = b.TryDrain()
	assert.True(t, ok)
	assert.Len(t, events, 1)
}

func TestBuffer_ConcurrentAppendKeepsEverything(t *testing.T) {
	const producers, perProducer = 8, 100
	b := NewBuffer()
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				b.Append(Event{Class: ClassCursorMoved})
			}
		}()
	}

	var drained []Event
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for loop := true; loop; {
		select {
		case <-done:
			loop = false
		default:
		}
		drained = append(drained, b.Drain()...)
	}

	require.Len(t, drained, producers*perProducer)
	for i := 1; i < len(drained); i++ {
		assert.Equal(t, drained[i-1].Seq+1, drained[i].Seq)
	}
}

func TestGlobal(t *testing.T) {
	Drain()
	Global().Append(Event{Class: ClassResize})
	events, ok := TryDrain()
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, ClassResize, events[0].Class)
	assert.Empty(t, Drain())
}
