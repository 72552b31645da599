//go:build tinygo

// Command dalislave is the firmware of a DALI slave on a Raspberry Pi Pico.
// The host gateway (dalid -serial) talks to it over UART0.
package main

import (
	"context"
	"machine"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/line/mcu"
	"github.com/robotalks/dali.go/pkg/link"
)

const (
	pinOut   = machine.GP14
	pinIn    = machine.GP15
	baudRate = 115200
)

func main() {
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})

	port, err := mcu.OpenUART(machine.UART0, baudRate, machine.UART0_TX_PIN, machine.UART0_RX_PIN)
	if err != nil {
		println("uart:", err.Error())
		return
	}
	// the receiver circuit negates the bus level, the output transistor
	// shorts the bus when driven high.
	line := mcu.NewLine(pinOut, pinIn, true)
	responder, err := link.NewResponder(link.ResponderConfig{
		Core: dali.Config{
			Output:       line,
			InvertOutput: true,
			Input:        line,
			InvertInput:  true,
			Interrupt:    line,
			Millisecond: func() {
				// heartbeat toggles every ~0.5 s.
				heartbeat++
				if heartbeat%512 == 0 {
					led.Set(!led.Get())
				}
			},
		},
		Link: link.New(port),
	})
	if err != nil {
		println("slave:", err.Error())
		return
	}
	if err := line.Bind(responder.OnEdge); err != nil {
		println("interrupt:", err.Error())
		return
	}
	go responder.Run(context.Background())
	mcu.RunTicker(dali.DefaultTickFrequency, responder)
}

var heartbeat uint32
