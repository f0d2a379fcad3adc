//go:build unix

package mux_test

import (
	"errors"
	"fmt"
	"os"

	"github.com/joeycumines/go-uiselect/fdset"
	"github.com/joeycumines/go-uiselect/mux"
	"github.com/joeycumines/go-uiselect/pump"
	"github.com/joeycumines/go-uiselect/uievent"
)

func ExampleMultiplexer_Select() {
	toolkit, err := pump.NewSynthetic(true, 8)
	if err != nil {
		panic(err)
	}
	defer toolkit.Close()

	// events are appended here, for the host to drain after an interrupt
	buffer := uievent.NewBuffer()

	// the calling goroutine becomes the pump's thread
	m, err := mux.New(mux.WithToolkit(toolkit), mux.WithBuffer(buffer))
	if err != nil {
		panic(err)
	}
	defer m.Close()

	r, w, err := os.Pipe()
	if err != nil {
		panic(err)
	}
	defer r.Close()
	defer w.Close()
	if _, err := w.Write([]byte("x")); err != nil {
		panic(err)
	}
	fd := int(r.Fd())

	read := fdset.Of(fd)
	n, err := m.Select(fd+1, read, nil, -1)
	fmt.Println(n, err, read.Has(fd))

	// still readable, but a queued UI event wins the tie
	toolkit.Inject(uievent.Event{Class: uievent.ClassResize, Window: 1})
	read = fdset.Of(fd)
	n, err = m.Select(fd+1, read, nil, -1)
	fmt.Println(n, errors.Is(err, mux.ErrInterrupted), read.Has(fd))
	for _, e := range buffer.Drain() {
		fmt.Println(e.Class, e.Window)
	}

	//output:
	//1 <nil> true
	//-1 true false
	//Resize 1
}
