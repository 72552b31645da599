// Package mcu connects a DALI slave to microcontroller pins and a UART
// using the TinyGo machine package. It is only built by TinyGo.
package mcu
