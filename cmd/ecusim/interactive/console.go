// Package interactive provides the interactive command-line interface
// for ecusim.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/ecusim/pkg/ecu"
	"github.com/mash-protocol/ecusim/pkg/sensor"
	"github.com/mash-protocol/ecusim/pkg/subscription"
	"github.com/mash-protocol/ecusim/pkg/vehicle"
)

// errUsage is returned by command handlers when the arguments do not match.
var errUsage = errors.New("usage")

// Console handles interactive mode for ecusim.
type Console struct {
	rl      *readline.Instance
	out     io.Writer
	manager *subscription.Manager
	vehicle *vehicle.Vehicle
}

// New creates a new interactive console.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ecusim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// newWithWriter creates a console without a terminal. Commands are fed
// through execute.
func newWithWriter(out io.Writer) *Console {
	return &Console{out: out}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Bind attaches the simulation the console operates on.
func (c *Console) Bind(m *subscription.Manager, v *vehicle.Vehicle) {
	c.manager = m
	c.vehicle = v
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if c.execute(line) {
			cancel()
			return
		}
	}
}

// execute runs a single command line. It reports whether the console
// should exit.
func (c *Console) execute(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()

	case "sensors", "ls":
		c.cmdSensors()

	case "ecus":
		c.cmdECUs()

	case "counts":
		c.cmdCounts()

	case "create-sensor", "cs":
		err = c.cmdCreateSensor(args)

	case "create-ecu", "ce":
		err = c.cmdCreateECU(args)

	case "subscribe", "sub":
		err = c.cmdSubscribe(args, true)

	case "unsubscribe", "unsub":
		err = c.cmdSubscribe(args, false)

	case "sample":
		err = c.cmdSample(args)

	case "broadcast", "bc":
		err = c.cmdBroadcast(args)

	case "refresh":
		err = c.cmdRefresh(args)

	case "read", "r":
		err = c.cmdRead(args)

	case "table", "t":
		err = c.cmdTable(args)

	case "release-sensor":
		err = c.cmdReleaseSensor(args)

	case "release-ecu":
		err = c.cmdReleaseECU(args)

	case "adaptive":
		err = c.cmdAdaptive(args)

	case "diag":
		err = c.vehicle.StartDiagnostics()

	case "status", "s":
		c.printReport(c.vehicle.Status())

	case "tick":
		var report vehicle.Report
		report, err = c.vehicle.Tick()
		if err == nil {
			c.printReport(report)
		}

	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true

	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}

	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(c.out, err)
		} else {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
ECU Simulator Commands:
  Inspection:
    sensors                      - List live sensors
    ecus                         - List live ECUs
    counts                       - Show live counts and issued ids
    table <ecu-id>               - Show the readings table of an ECU
    read <ecu-id> <sensor>       - Read one entry of an ECU table

  Instances:
    create-sensor <category>     - Create a sensor (speed, temperature, radar, battery)
    create-ecu <kind>            - Create an ECU (acc, diagnostics)
    release-sensor <sensor>      - Drop the creator hold on a sensor
    release-ecu <ecu-id>         - Destroy an ECU

  Subscriptions:
    subscribe <ecu-id> <sensor>  - Subscribe an ECU to a sensor
    unsubscribe <ecu-id> <sensor> - Unsubscribe an ECU from a sensor
    sample <sensor>              - Take a new reading
    broadcast <sensor>           - Push the last reading to subscribers
    refresh <ecu-id>             - Sample and broadcast every sensor of an ECU

  Vehicle:
    adaptive on|off              - Set adaptive cruise control mode
    diag                         - Run diagnostics
    status                       - Show vehicle status
    tick                         - Run one simulation step

  Other:
    help                         - Show this help
    quit                         - Exit

  Sensors are addressed as category:instance, e.g. speed:1.`)
}

func (c *Console) cmdSensors() {
	ids := c.manager.SensorIDs()
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "No sensors.")
		return
	}

	fmt.Fprintf(c.out, "%-16s %10s %6s %s\n", "SENSOR", "LAST", "HOLDS", "SUBSCRIBERS")
	for _, id := range ids {
		s, ok := c.manager.Sensor(id)
		if !ok {
			continue
		}
		subs := s.Subscribers()
		names := make([]string, 0, len(subs))
		for _, sub := range subs {
			name := fmt.Sprintf("%s#%d", sub.Name, sub.ID)
			if c.manager.Expired(sub) {
				name += " (expired)"
			}
			names = append(names, name)
		}
		fmt.Fprintf(c.out, "%-16s %10.2f %6d %s\n", id, s.Last(), s.Holds(), strings.Join(names, ", "))
	}
}

func (c *Console) cmdECUs() {
	ids := c.manager.ECUIDs()
	if len(ids) == 0 {
		fmt.Fprintln(c.out, "No ECUs.")
		return
	}

	fmt.Fprintf(c.out, "%-4s %-28s %-4s %s\n", "ID", "NAME", "ON", "SENSORS")
	for _, id := range ids {
		e, ok := c.manager.ECU(id)
		if !ok {
			continue
		}
		subs, _ := c.manager.Subscriptions(id)
		labels := make([]string, 0, len(subs))
		for _, sid := range subs {
			labels = append(labels, sid.String())
		}
		fmt.Fprintf(c.out, "%-4d %-28s %-4s %s\n", id, e.Name(), onOff(e.On()), strings.Join(labels, ", "))
	}
}

func (c *Console) cmdCounts() {
	counts := c.manager.Counts()
	for _, cat := range sensor.Categories() {
		fmt.Fprintf(c.out, "%-14s live %d, issued %d\n", cat, counts.Live(cat), counts.Issued[cat])
	}
	fmt.Fprintf(c.out, "%-14s live %d\n", "SENSORS", counts.SensorsLive)
	fmt.Fprintf(c.out, "%-14s live %d, issued %d\n", "ECUS", counts.ECUs, counts.ECUsIssued)
}

func (c *Console) cmdCreateSensor(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: create-sensor <category>", errUsage)
	}
	cat, err := sensor.ParseCategory(args[0])
	if err != nil {
		return err
	}
	id, err := c.vehicle.ActivateSensor(cat)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created sensor %s\n", id)
	return nil
}

func (c *Console) cmdCreateECU(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: create-ecu <kind>", errUsage)
	}
	kind, err := ecu.ParseKind(args[0])
	if err != nil {
		return err
	}
	id, err := c.vehicle.ActivateECU(kind)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Created ECU %d (%s)\n", id, kind.Name())
	return nil
}

func (c *Console) cmdSubscribe(args []string, subscribe bool) error {
	verb := "subscribe"
	if !subscribe {
		verb = "unsubscribe"
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: %s <ecu-id> <sensor>", errUsage, verb)
	}
	ecuID, err := parseECU(args[0])
	if err != nil {
		return err
	}
	sensorID, err := sensor.ParseID(args[1])
	if err != nil {
		return err
	}

	var status subscription.Status
	if subscribe {
		status = c.manager.Subscribe(ecuID, sensorID)
	} else {
		status = c.manager.Unsubscribe(ecuID, sensorID)
	}
	fmt.Fprintf(c.out, "%s ECU %d to %s: %s\n", verb, ecuID, sensorID, status)
	return nil
}

func (c *Console) cmdSample(args []string) error {
	id, err := sensorArg(args, "sample <sensor>")
	if err != nil {
		return err
	}
	v, err := c.manager.Sample(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s = %.2f %s\n", id, v, unit(id.Category))
	return nil
}

func (c *Console) cmdBroadcast(args []string) error {
	id, err := sensorArg(args, "broadcast <sensor>")
	if err != nil {
		return err
	}
	n, err := c.manager.Broadcast(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s delivered to %d ECU(s)\n", id, n)
	return nil
}

func (c *Console) cmdRefresh(args []string) error {
	id, err := ecuArg(args, "refresh <ecu-id>")
	if err != nil {
		return err
	}
	n, err := c.manager.Refresh(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "ECU %d refreshed, %d update(s) delivered\n", id, n)
	return nil
}

func (c *Console) cmdRead(args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: read <ecu-id> <sensor>", errUsage)
	}
	ecuID, err := parseECU(args[0])
	if err != nil {
		return err
	}
	sensorID, err := sensor.ParseID(args[1])
	if err != nil {
		return err
	}
	v, ok := c.manager.ReadTable(ecuID, sensorID.Category, sensorID.Instance)
	if !ok {
		fmt.Fprintf(c.out, "ECU %d has no entry for %s\n", ecuID, sensorID)
		return nil
	}
	fmt.Fprintf(c.out, "ECU %d %s = %.2f %s\n", ecuID, sensorID, v, unit(sensorID.Category))
	return nil
}

func (c *Console) cmdTable(args []string) error {
	id, err := ecuArg(args, "table <ecu-id>")
	if err != nil {
		return err
	}
	table, err := c.manager.Table(id)
	if err != nil {
		return err
	}
	if len(table) == 0 {
		fmt.Fprintf(c.out, "ECU %d has no readings.\n", id)
		return nil
	}
	for _, cat := range sensor.Categories() {
		for _, inst := range table.Instances(cat) {
			sid := sensor.ID{Category: cat, Instance: inst}
			fmt.Fprintf(c.out, "  %-16s %10.2f %s\n", sid, table[cat][inst], unit(cat))
		}
	}
	return nil
}

func (c *Console) cmdReleaseSensor(args []string) error {
	id, err := sensorArg(args, "release-sensor <sensor>")
	if err != nil {
		return err
	}
	if err := c.manager.ReleaseSensor(id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Released sensor %s\n", id)
	return nil
}

func (c *Console) cmdReleaseECU(args []string) error {
	id, err := ecuArg(args, "release-ecu <ecu-id>")
	if err != nil {
		return err
	}
	if err := c.manager.ReleaseECU(id); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Released ECU %d\n", id)
	return nil
}

func (c *Console) cmdAdaptive(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(c.out, "Adaptive mode: %s\n", onOff(c.vehicle.AdaptiveMode()))
		return nil
	}
	var on bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		on = true
	case "off", "false", "0":
		on = false
	default:
		return fmt.Errorf("%w: adaptive on|off", errUsage)
	}
	return c.vehicle.SetAdaptiveMode(on)
}

func (c *Console) printReport(r vehicle.Report) {
	fmt.Fprintf(c.out, "%s\n", r.Vehicle)
	fmt.Fprintf(c.out, "  Speed:        %8.2f %s\n", r.Speed, unit(sensor.CategorySpeed))
	fmt.Fprintf(c.out, "  Temperature:  %8.2f %s\n", r.Temperature, unit(sensor.CategoryTemperature))
	fmt.Fprintf(c.out, "  Radar:        %8.2f %s\n", r.Radar, unit(sensor.CategoryRadar))
	fmt.Fprintf(c.out, "  Battery:      %8.2f %s\n", r.BatteryLevel, unit(sensor.CategoryBatteryLevel))
	fmt.Fprintf(c.out, "  Cruise:       %s\n", onOff(r.CruiseControl))
	for _, msg := range r.Messages {
		fmt.Fprintf(c.out, "  - %s\n", msg)
	}
}

func sensorArg(args []string, usage string) (sensor.ID, error) {
	if len(args) != 1 {
		return sensor.ID{}, fmt.Errorf("%w: %s", errUsage, usage)
	}
	return sensor.ParseID(args[0])
}

func ecuArg(args []string, usage string) (ecu.ID, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%w: %s", errUsage, usage)
	}
	return parseECU(args[0])
}

func parseECU(s string) (ecu.ID, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid ECU id: %s", s)
	}
	return ecu.ID(n), nil
}

func unit(c sensor.Category) string {
	d, _ := sensor.Describe(c)
	return d.Unit
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
