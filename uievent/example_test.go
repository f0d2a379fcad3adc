package uievent_test

import (
	"fmt"

	"github.com/joeycumines/go-uiselect/uievent"
)

func ExampleBuffer() {
	buffer := uievent.NewBuffer()
	for _, class := range []uievent.Class{uievent.ClassResize, uievent.ClassKeyboard, uievent.ClassFocus} {
		if class.Interrupts() {
			buffer.Append(uievent.Event{Class: class})
		}
	}

	if events, ok := buffer.TryDrain(); ok {
		for _, e := range events {
			fmt.Println(e.Seq, e.Class)
		}
	}
	fmt.Println(buffer.Len())

	//output:
	//1 Resize
	//2 Keyboard
	//3 Focus
	//0
}
