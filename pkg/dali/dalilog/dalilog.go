// Package dalilog decorates DALI handlers with glog logging. Handlers run in
// interrupt context on hardware, so these are meant for hosted builds.
package dalilog

import (
	"github.com/golang/glog"

	"github.com/robotalks/dali.go/pkg/dali"
	"github.com/robotalks/dali.go/pkg/dali/master"
)

// Frames logs received frames at V(2) before passing them to next, which
// may be nil.
func Frames(name string, next dali.FrameHandler) dali.FrameHandler {
	return dali.FrameHandlerFunc(func(address, data byte) {
		if glog.V(2) {
			glog.Infof("%s: frame %02x %02x", name, address, data)
		}
		if next != nil {
			next.HandleFrame(address, data)
		}
	})
}

// Faults logs bus failures as warnings and framing errors at V(1).
func Faults(name string, next dali.FaultHandler) dali.FaultHandler {
	return dali.FaultHandlerFunc(func(code dali.FaultCode) {
		if code.IsFraming() {
			glog.V(1).Infof("%s: %v", name, code)
		} else {
			glog.Warningf("%s: %v", name, code)
		}
		if next != nil {
			next.HandleFault(code)
		}
	})
}

type answers struct {
	name string
	next master.AnswerHandler
}

// Answers logs transaction outcomes of a master.
func Answers(name string, next master.AnswerHandler) master.AnswerHandler {
	return &answers{name: name, next: next}
}

func (a *answers) HandleAnswer(address, data, answer byte) {
	if glog.V(2) {
		glog.Infof("%s: %02x %02x answered %02x", a.name, address, data, answer)
	}
	if a.next != nil {
		a.next.HandleAnswer(address, data, answer)
	}
}

func (a *answers) HandleNoAnswer(address, data byte) {
	if glog.V(2) {
		glog.Infof("%s: %02x %02x no answer", a.name, address, data)
	}
	if a.next != nil {
		a.next.HandleNoAnswer(address, data)
	}
}

func (a *answers) HandleAnswerError(address, data byte, code dali.FaultCode) {
	glog.Warningf("%s: %02x %02x answer error: %v", a.name, address, data, code)
	if a.next != nil {
		a.next.HandleAnswerError(address, data, code)
	}
}
