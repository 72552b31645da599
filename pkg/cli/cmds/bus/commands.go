// Package bus registers the DALI bus and slave commands to the shell.
package bus

import (
	"fmt"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/dali.go/pkg/cli/sh"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// slaveArgs splits an optional leading slave name from n byte arguments.
func slaveArgs(args []string, n int) (string, []byte, error) {
	var slave string
	switch len(args) {
	case n:
	case n + 1:
		slave, args = args[0], args[1:]
	default:
		return "", nil, fmt.Errorf("expect %d arguments", n)
	}
	values, err := sh.ParseBytes(args...)
	return slave, values, err
}

// ForwardMsg builds a Forward command: ADDR DATA.
func ForwardMsg(args []string) (fx.Message, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("expect ADDR DATA")
	}
	values, err := sh.ParseBytes(args...)
	if err != nil {
		return nil, err
	}
	return msgs.NewForward(values[0], values[1]), nil
}

// ShortMsg builds a Short command: on|off.
func ShortMsg(args []string) (fx.Message, error) {
	msg := &msgs.Short{}
	if len(args) != 1 {
		return nil, fmt.Errorf("expect on or off")
	}
	switch args[0] {
	case "on":
		msg.On = true
	case "off":
	default:
		return nil, fmt.Errorf("expect on or off")
	}
	return msg, nil
}

// AnswerMsg builds an Answer command: [SLAVE] ANSWER.
func AnswerMsg(args []string) (fx.Message, error) {
	slave, values, err := slaveArgs(args, 1)
	if err != nil {
		return nil, err
	}
	msg := &msgs.Answer{}
	msg.Slave, msg.Answer = slave, uint32(values[0])
	return msg, nil
}

// RuleMsg builds a Rule command: [SLAVE] ADDR DATA ANSWER.
func RuleMsg(args []string) (fx.Message, error) {
	slave, values, err := slaveArgs(args, 3)
	if err != nil {
		return nil, err
	}
	msg := &msgs.Rule{}
	msg.Slave = slave
	msg.Address, msg.Data, msg.Answer = uint32(values[0]), uint32(values[1]), uint32(values[2])
	return msg, nil
}

// UnruleMsg builds a Rule command removing an entry: [SLAVE] ADDR DATA.
func UnruleMsg(args []string) (fx.Message, error) {
	slave, values, err := slaveArgs(args, 2)
	if err != nil {
		return nil, err
	}
	msg := &msgs.Rule{}
	msg.Slave, msg.Remove = slave, true
	msg.Address, msg.Data = uint32(values[0]), uint32(values[1])
	return msg, nil
}

// ResetMsg builds a Reset command: [SLAVE].
func ResetMsg(args []string) (fx.Message, error) {
	slave, _, err := slaveArgs(args, 0)
	if err != nil {
		return nil, err
	}
	msg := &msgs.Reset{}
	msg.Slave = slave
	return msg, nil
}

// StatsMsg builds a StatsQuery command: [SLAVE].
func StatsMsg(args []string) (fx.Message, error) {
	slave, _, err := slaveArgs(args, 0)
	if err != nil {
		return nil, err
	}
	msg := &msgs.StatsQuery{}
	msg.Slave = slave
	return msg, nil
}

func commandFunc(build func([]string) (fx.Message, error)) func(c *ishell.Context) {
	return sh.MustBeConnected(func(c *ishell.Context) {
		msg, err := build(c.Args)
		if err != nil {
			c.Err(err)
			return
		}
		sh.DoCommand(c, msg)
	})
}

var (
	// ForwardCmd sends a forward frame from the simulated master.
	ForwardCmd = ishell.Cmd{
		Name:    "forward",
		Aliases: []string{"fw"},
		Help:    "ADDR DATA",
		Func:    commandFunc(ForwardMsg),
	}

	// ShortCmd shorts the simulated bus.
	ShortCmd = ishell.Cmd{
		Name: "short",
		Help: "on|off",
		Func: commandFunc(ShortMsg),
	}

	// AnswerCmd requests a backward frame.
	AnswerCmd = ishell.Cmd{
		Name:    "answer",
		Aliases: []string{"a"},
		Help:    "[SLAVE] ANSWER",
		Func:    commandFunc(AnswerMsg),
	}

	// RuleCmd sets an answer table entry.
	RuleCmd = ishell.Cmd{
		Name: "rule",
		Help: "[SLAVE] ADDR DATA ANSWER",
		Func: commandFunc(RuleMsg),
	}

	// UnruleCmd removes an answer table entry.
	UnruleCmd = ishell.Cmd{
		Name: "unrule",
		Help: "[SLAVE] ADDR DATA",
		Func: commandFunc(UnruleMsg),
	}

	// ResetCmd re-initializes a slave.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "[SLAVE]",
		Func: commandFunc(ResetMsg),
	}

	// StatsCmd queries the counters of a slave.
	StatsCmd = ishell.Cmd{
		Name:    "stats",
		Aliases: []string{"st"},
		Help:    "[SLAVE]",
		Func:    commandFunc(StatsMsg),
	}
)

func init() {
	sh.AddCmds(
		&ForwardCmd,
		&ShortCmd,
		&AnswerCmd,
		&RuleCmd,
		&UnruleCmd,
		&ResetCmd,
		&StatsCmd,
	)
}
