// Package sh is the interactive console of DALI devices, built on ishell.
// Command providers register their commands with AddCmds in init.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/dali.go/pkg/device"
	"github.com/robotalks/dali.go/pkg/device/env"
	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool
	Timeout     time.Duration

	Shell  *ishell.Shell
	Config *env.Config
	Loop   *ConnLoop

	watch atomic.Bool
}

// ConnLoop is a running loop with a device connection.
type ConnLoop struct {
	Ctx    context.Context
	Cancel func()
	Ref    device.Ref
	Loop   *fx.Loop
	Conn   device.Conn
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool

	commands = []*ishell.Cmd{
		&DiscoverCmd,
		&ConnectCmd,
		&DisconnectCmd,
		&WatchCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Timeout:     time.Second,

		Shell:  ishell.New(),
		Config: conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Loop == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// FormatInfo prints Info into friendly string for display.
func FormatInfo(info device.Info) string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "%s", info.Ref.Name())
	if info.Meta.Description != "" {
		fmt.Fprintf(&w, ": %s", info.Meta.Description)
	}
	if info.Meta.TickFrequency != 0 {
		fmt.Fprintf(&w, " (%d Hz)", info.Meta.TickFrequency)
	}
	if len(info.Meta.Slaves) > 0 {
		fmt.Fprintf(&w, " [%s]", strings.Join(info.Meta.Slaves, ", "))
	}
	return w.String()
}

// FormatMsg prints a message as its type name and fields.
func FormatMsg(msg fx.Message) string {
	sm, ok := msg.(msgs.SerializableMessage)
	if !ok {
		return msgs.TypeName(msg)
	}
	return msgs.TypeName(msg) + " " + sm.Serializable().String()
}

// ParseByte parses a byte in decimal, hex (0x) or octal (0) notation.
func ParseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid byte %q", s)
	}
	return byte(v), nil
}

// ParseBytes parses all args with ParseByte.
func ParseBytes(args ...string) ([]byte, error) {
	values := make([]byte, len(args))
	for n, arg := range args {
		v, err := ParseByte(arg)
		if err != nil {
			return nil, err
		}
		values[n] = v
	}
	return values, nil
}

// DoCommand runs a command and waits for result.
func DoCommand(c *ishell.Context, msg fx.Message) (err error) {
	s := ShellFrom(c)
	if s.Loop == nil {
		err = fmt.Errorf("not connected")
		c.Err(err)
		return
	}
	f := s.Loop.Conn.DoCommand(msg)
	select {
	case res := <-f.ResultChan():
		if res.Err != nil {
			c.Err(res.Err)
			return res.Err
		}
		if s.OutputJSON {
			out, err := json.Marshal(res.Msg.(msgs.SerializableMessage).Serializable())
			if err != nil {
				c.Err(err)
				return err
			}
			c.Println(string(out))
			return nil
		}
		if _, ok := res.Msg.(*msgs.CommandOK); ok {
			c.Println("OK")
			return nil
		}
		c.Println(FormatMsg(res.Msg))
	case <-time.After(2 * s.Timeout):
		// connections expiring their own commands reply before this.
		c.Err(fmt.Errorf("command timeout"))
		return context.DeadlineExceeded
	}
	return nil
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Watching indicates events are printed.
func (s *Shell) Watching() bool {
	return s.watch.Load()
}

// SetWatch turns event printing on or off.
func (s *Shell) SetWatch(on bool) {
	s.watch.Store(on)
}

// DiscoverDevices discovers devices.
func (s *Shell) DiscoverDevices(filter func(device.Info) bool) (device.Connector, []device.Info, error) {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return nil, nil, err
	}
	infoList, err := connector.Discover(context.TODO())
	if err != nil {
		return connector, nil, err
	}
	if filter != nil {
		items := make([]device.Info, 0, len(infoList))
		for _, info := range infoList {
			if filter(info) {
				items = append(items, info)
			}
		}
		infoList = items
	}
	return connector, infoList, nil
}

// SelectDevice discovers devices and asks for a choice.
func (s *Shell) SelectDevice(filter func(device.Info) bool) (device.Connector, *device.Info, error) {
	connector, infoList, err := s.DiscoverDevices(filter)
	if err != nil {
		return nil, nil, err
	}
	if len(infoList) == 0 {
		return connector, nil, nil
	}
	var index int
	if len(infoList) > 1 {
		if !s.Interactive {
			return nil, nil, fmt.Errorf("more than 1 devices discovered in non-interactive mode")
		}
		items := make([]string, len(infoList))
		for n, info := range infoList {
			items[n] = FormatInfo(info)
		}
		index = s.Shell.MultiChoice(items, "Which one to connect?")
	}

	return connector, &infoList[index], nil
}

// Connect connects device with ref.
func (s *Shell) Connect(ref device.Ref) error {
	connector, err := s.Config.NewConnector()
	if err != nil {
		return err
	}
	connLoop := &ConnLoop{Ref: ref}
	connLoop.Ctx, connLoop.Cancel = context.WithCancel(context.Background())
	if connLoop.Conn, err = connector.Connect(connLoop.Ctx, ref); err != nil {
		connLoop.Cancel()
		return err
	}
	if tc, ok := connLoop.Conn.(interface{ SetTimeout(time.Duration) }); ok {
		tc.SetTimeout(s.Timeout)
	}
	connLoop.Loop = fx.NewLoop()
	if adder, ok := connLoop.Conn.(fx.LoopAdder); ok {
		connLoop.Loop.Add(adder)
	}
	connLoop.Loop.AddController(fx.PrLvPublish, fx.ControlFunc(s.printEvents))
	if s.Loop != nil {
		s.Loop.Cancel()
	}
	s.Loop = connLoop
	go connLoop.Loop.Run(connLoop.Ctx)
	s.Shell.SetPrompt(fmt.Sprintf("%s > ", ref.Name()))
	return nil
}

// Disconnect disconnects current device.
func (s *Shell) Disconnect() {
	if s.Loop != nil {
		s.Loop.Cancel()
		s.Loop = nil
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

func (s *Shell) printEvents(cc fx.ControlContext) error {
	if !s.Watching() {
		return nil
	}
	cc.Messages().ProcessMessages(fx.ProcessMessageFunc(func(mctx fx.MessageProcessingContext) {
		msg := mctx.CurrentMessage()
		switch msg.(type) {
		case *msgs.Frame, *msgs.Answered, *msgs.Fault, *msgs.Transaction:
		default:
			return
		}
		mctx.MessageTaken()
		if s.OutputJSON {
			if out, err := json.Marshal(msg.(msgs.SerializableMessage).Serializable()); err == nil {
				s.Shell.Println(string(out))
			}
			return
		}
		s.Shell.Println(FormatMsg(msg))
	}))
	return nil
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.Info.Ref.IsValid() {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.Info.Ref.Name())
		}
		if err := s.Connect(s.Config.Info.Ref); err != nil {
			log.Fatalf("connect %q failed: %v", s.Config.Info.Ref.Name(), err)
		}
	}

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		if s.Watching() {
			<-s.Loop.Ctx.Done()
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var (
	// DiscoverCmd discovers devices.
	DiscoverCmd = ishell.Cmd{
		Name:    "discover",
		Aliases: []string{"list", "l"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			_, infoList, err := s.DiscoverDevices(nil)
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				if len(infoList) == 0 {
					infoList = []device.Info{}
				}
				out, err := json.Marshal(infoList)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			if len(infoList) == 0 {
				c.Println("No devices found")
				return
			}
			for _, info := range infoList {
				c.Println(FormatInfo(info))
			}
		},
	}

	// ConnectCmd connects a device.
	ConnectCmd = ishell.Cmd{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[TYPE [ID] | TYPE/ID]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var ref device.Ref
			if len(c.Args) >= 2 {
				ref.Type, ref.ID = c.Args[0], c.Args[1]
			} else if r, ok := device.ParseRef(strings.Join(c.Args, "")); ok && r.IsValid() {
				ref = r
			} else {
				var filter func(device.Info) bool
				if len(c.Args) == 1 {
					filter = func(info device.Info) bool {
						return info.Ref.Type == c.Args[0]
					}
				}
				_, info, err := s.SelectDevice(filter)
				if err != nil {
					c.Err(err)
					return
				}
				if info == nil {
					c.Err(fmt.Errorf("no device discovered"))
					return
				}
				ref = info.Ref
			}
			if err := s.Connect(ref); err != nil {
				c.Err(err)
				return
			}
		},
	}

	// DisconnectCmd disconnects current device.
	DisconnectCmd = ishell.Cmd{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Disconnect()
		},
	}

	// WatchCmd prints events of the connected device.
	WatchCmd = ishell.Cmd{
		Name:    "watch",
		Aliases: []string{"w"},
		Help:    "[on|off]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			on := !s.Watching()
			if len(c.Args) > 0 {
				switch c.Args[0] {
				case "on":
					on = true
				case "off":
					on = false
				default:
					c.Err(fmt.Errorf("expect on or off"))
					return
				}
			}
			s.SetWatch(on)
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := env.Resolve()
	if err != nil {
		log.Fatalln(err)
	}
	New(conf).WithAutoConnect(true).Run(flag.Args()...)
}
