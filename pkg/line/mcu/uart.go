//go:build tinygo

package mcu

import (
	"machine"
	"time"
)

// Port makes a UART read blocking, yielding to other goroutines while the
// receive buffer is empty.
type Port struct {
	uart *machine.UART
}

// OpenUART configures the UART.
func OpenUART(uart *machine.UART, baudRate uint32, tx, rx machine.Pin) (*Port, error) {
	if err := uart.Configure(machine.UARTConfig{BaudRate: baudRate, TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	return &Port{uart: uart}, nil
}

// Read implements io.Reader.
func (p *Port) Read(b []byte) (int, error) {
	for p.uart.Buffered() == 0 {
		time.Sleep(100 * time.Microsecond)
	}
	return p.uart.Read(b)
}

// Write implements io.Writer.
func (p *Port) Write(b []byte) (int, error) {
	return p.uart.Write(b)
}
