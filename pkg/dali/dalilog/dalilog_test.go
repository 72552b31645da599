package dalilog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/dali/master"
)

func TestFramesPassThrough(t *testing.T) {
	var got []byte
	h := Frames("s1", dali.FrameHandlerFunc(func(address, data byte) {
		got = append(got, address, data)
	}))
	h.HandleFrame(0x2d, 0x90)
	require.Equal(t, []byte{0x2d, 0x90}, got)
	require.NotPanics(t, func() { Frames("s1", nil).HandleFrame(0, 0) })
}

func TestFaultsPassThrough(t *testing.T) {
	var got []dali.FaultCode
	h := Faults("s1", dali.FaultHandlerFunc(func(code dali.FaultCode) {
		got = append(got, code)
	}))
	h.HandleFault(dali.FaultBusFailure)
	h.HandleFault(dali.FaultStartBit)
	require.Equal(t, []dali.FaultCode{dali.FaultBusFailure, dali.FaultStartBit}, got)
	require.NotPanics(t, func() { Faults("s1", nil).HandleFault(dali.FaultBusFailure) })
}

func TestAnswersPassThrough(t *testing.T) {
	var calls []string
	h := Answers("m", master.AnswerFuncs{
		Answer:   func(address, data, answer byte) { calls = append(calls, "answer") },
		NoAnswer: func(address, data byte) { calls = append(calls, "none") },
		Error:    func(address, data byte, code dali.FaultCode) { calls = append(calls, code.String()) },
	})
	h.HandleAnswer(1, 2, 3)
	h.HandleNoAnswer(1, 2)
	h.HandleAnswerError(1, 2, dali.FaultMissingEdge)
	require.Equal(t, []string{"answer", "none", dali.FaultMissingEdge.String()}, calls)
	require.NotPanics(t, func() { Answers("m", nil).HandleNoAnswer(0, 0) })
}
