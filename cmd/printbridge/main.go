package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ka2n/printbridge"
	"github.com/ka2n/printbridge/bluez"
	"github.com/ka2n/printbridge/channel"
	"github.com/ka2n/printbridge/conn/usb"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	configPath = flag.String("config", printbridge.DefaultConfigPath(), "Config file path")
	socketPath = flag.String("socket", "", "Command socket path (overrides config)")
	debugMode  = flag.Bool("debug", false, "Debug logging")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `usage: printbridge [flags] <command>

commands:
  serve                          host the command socket
  call <method> [key=value ...]  send one command and print the result

flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	cfg, err := printbridge.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalln(err)
	}
	if *socketPath != "" {
		cfg.Socket = *socketPath
	}
	if *debugMode {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Log.Apply(logrus.StandardLogger()); err != nil {
		logrus.Fatalln(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd := flag.Arg(0); cmd {
	case "serve":
		err = serve(ctx, cfg)
	case "call":
		err = call(ctx, cfg, flag.Args()[1:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logrus.Fatalln(err)
	}
}

func serve(ctx context.Context, cfg printbridge.Config) error {
	log := logrus.WithField("component", "serve")

	opts := printbridge.Options{
		USBTimeout: cfg.USB.Timeout,
		Logger:     logrus.WithField("component", "manager"),
	}

	dialer := &bluez.Dialer{
		Channel: cfg.Bluetooth.Channel,
		Ports:   cfg.Bluetooth.Ports,
		Log:     logrus.WithField("component", "dialer"),
	}
	adapter, err := bluez.New(cfg.Bluetooth.Adapter)
	if err != nil {
		log.WithError(err).Warn("bluetooth unavailable")
	} else {
		defer adapter.Close()
		opts.Adapter = adapter
		dialer.Adapter = adapter
	}
	opts.Dialer = dialer

	debug := 0
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		debug = 3
	}
	host := usb.NewHost(debug)
	host.Log = logrus.WithField("component", "usb")
	defer host.Close()
	opts.USBHost = host

	m := printbridge.NewManager(opts)
	defer m.CloseConnection()

	ln, err := channel.Listen(cfg.Socket)
	if err != nil {
		return err
	}
	defer os.Remove(cfg.Socket)

	srv := &channel.Server{
		Handler: printbridge.NewDispatcher(m, logrus.WithField("component", "dispatcher")),
		Log:     logrus.WithField("component", "channel"),
	}
	log.Infof("listening on %s", cfg.Socket)
	err = srv.Serve(ctx, ln)
	log.Info("shutting down")
	return err
}

func call(ctx context.Context, cfg printbridge.Config, args []string) error {
	if len(args) < 1 {
		return errors.New("call: method required")
	}
	arguments, err := parseArguments(args[1:])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	result, err := channel.Call(ctx, cfg.Socket, args[0], arguments)
	if err != nil {
		return errors.Wrap(err, args[0])
	}
	fmt.Println(string(result))
	return nil
}

func parseArguments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, errors.Errorf("argument %q: expected key=value", a)
		}
		out[k] = v
	}
	return out, nil
}
