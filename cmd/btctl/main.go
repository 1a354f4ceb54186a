// btctl drives the bluetooth-manager plugin of a running btmanager daemon.
//
//	btctl [flags] <command>
//
// Commands:
//
//	status                 plugin initialization state
//	adapters               list adapters
//	available | enabled    default adapter present / powered
//	toggle                 flip power of the default adapter
//	power on|off           set power of -adapter
//	state                  full state of -adapter
//	devices | paired       devices known to / paired with -adapter
//	connected | available-devices
//	find -address XX:..    look a device up by MAC address
//	scan                   timed discovery (-duration)
//	info | connect | disconnect | network   act on -device
//	ping [value]
//	watch                  print change events until interrupted
//
// -adapter defaults to the first adapter the daemon reports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/usenocturne/btmanager/bluetooth"
	"github.com/usenocturne/btmanager/ws"
)

type options struct {
	adapter  string
	device   string
	address  string
	duration time.Duration
	args     []string
}

var errUsage = errors.New("usage: btctl [flags] <command>")

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolveAdapter(ctx context.Context, c *bluetooth.Client, opts *options) (string, error) {
	if opts.adapter != "" {
		return opts.adapter, nil
	}
	adapter := c.GetDefaultAdapter(ctx)
	if adapter == nil {
		return "", bluetooth.ErrNoAdapter
	}
	return adapter.Path, nil
}

func requireDevice(opts *options) error {
	if opts.device == "" {
		return errors.New("-device is required")
	}
	return nil
}

func run(ctx context.Context, c *bluetooth.Client, cmd string, opts *options, out io.Writer) error {
	switch cmd {
	case "status":
		ok, err := c.IsBluetoothPluginInitialized(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, ok)

	case "adapters":
		adapters, err := c.ListAdapters(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, adapters)

	case "available":
		return printJSON(out, c.IsBluetoothAvailable(ctx))

	case "enabled":
		return printJSON(out, c.IsBluetoothEnabled(ctx))

	case "toggle":
		powered, err := c.ToggleBluetooth(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, powered)

	case "network":
		if err := requireDevice(opts); err != nil {
			return err
		}
		iface, err := c.ConnectNetwork(ctx, opts.device)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, iface)
		return nil

	case "ping":
		var req bluetooth.PingRequest
		if len(opts.args) > 0 {
			req.Value = &opts.args[0]
		}
		pong, err := c.Ping(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(out, pong)

	case "info", "connect", "disconnect":
		if err := requireDevice(opts); err != nil {
			return err
		}
		switch cmd {
		case "connect":
			return c.ConnectDevice(ctx, opts.device)
		case "disconnect":
			return c.DisconnectDevice(ctx, opts.device)
		}
		info, err := c.GetDeviceInfo(ctx, opts.device)
		if err != nil {
			return err
		}
		return printJSON(out, info)
	}

	adapter, err := resolveAdapter(ctx, c, opts)
	if err != nil {
		return err
	}

	switch cmd {
	case "power":
		if len(opts.args) != 1 || (opts.args[0] != "on" && opts.args[0] != "off") {
			return errors.New("usage: btctl power on|off")
		}
		return c.SetAdapterPowered(ctx, adapter, opts.args[0] == "on")

	case "state":
		state, err := c.GetAdapterState(ctx, adapter)
		if err != nil {
			return err
		}
		return printJSON(out, state)

	case "devices", "paired":
		list := c.ListDevices
		if cmd == "paired" {
			list = c.ListPairedDevices
		}
		devices, err := list(ctx, adapter)
		if err != nil {
			return err
		}
		return printJSON(out, devices)

	case "connected":
		return printJSON(out, c.GetConnectedDevices(ctx, adapter))

	case "available-devices":
		return printJSON(out, c.GetAvailableDevices(ctx, adapter))

	case "find":
		if opts.address == "" {
			return errors.New("-address is required")
		}
		device := c.FindDeviceByAddress(ctx, adapter, opts.address)
		if device == nil {
			return fmt.Errorf("no device with address %s on %s", opts.address, adapter)
		}
		return printJSON(out, device)

	case "scan":
		devices, err := c.ScanForDevices(ctx, adapter, opts.duration)
		if err != nil {
			return err
		}
		return printJSON(out, devices)
	}

	return fmt.Errorf("unknown command %q", cmd)
}

func watch(ctx context.Context, events <-chan bluetooth.BluetoothChange, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-events:
			if !ok {
				return ws.ErrClosed
			}
			fmt.Fprintf(out, "%s %s\n", change.ChangeType, change.Data)
		}
	}
}

func main() {
	addr := flag.String("addr", "ws://localhost:5000/ws", "daemon websocket endpoint")
	adapter := flag.String("adapter", "", "adapter object path (default: first adapter)")
	device := flag.String("device", "", "device object path")
	address := flag.String("address", "", "device MAC address (find)")
	duration := flag.Duration("duration", bluetooth.DefaultScanTimeout, "scan duration")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout, ignored by watch")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	logger := logrus.New()
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, errUsage)
		flag.PrintDefaults()
		os.Exit(2)
	}
	cmd := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	conn, err := ws.Dial(dialCtx, *addr, logger)
	cancel()
	if err != nil {
		logger.WithError(err).Fatal("Failed to reach daemon")
	}
	defer conn.Close()

	if cmd == "watch" {
		if err := watch(ctx, conn.Events(), os.Stdout); err != nil {
			logger.WithError(err).Fatal("Watch ended")
		}
		return
	}

	ctx, cancel = context.WithTimeout(ctx, *timeout+*duration)
	defer cancel()

	opts := &options{
		adapter:  *adapter,
		device:   *device,
		address:  *address,
		duration: *duration,
		args:     flag.Args()[1:],
	}
	client := bluetooth.NewClient(conn, logger)
	if err := run(ctx, client, cmd, opts, os.Stdout); err != nil {
		logger.WithError(err).Fatalf("%s failed", cmd)
	}
}
