// Command mlviz serves, renders and plays the machine-learning animations.
//
//	mlviz serve  [-config path] [-addr :8080]
//	mlviz tui    [-config path]
//	mlviz render -demo name [-ticks N] [-out file.svg] [-trace] [-config path]
//	mlviz detect
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
	"github.com/openfluke/mlviz/detector"
	"github.com/openfluke/mlviz/lab"
	"github.com/openfluke/mlviz/server"
	"github.com/openfluke/mlviz/transformer"
	"github.com/openfluke/mlviz/tui"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: mlviz <serve|tui|render|detect> [flags]\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(os.Args[2:])
	case "tui":
		err = runTUI(os.Args[2:])
	case "render":
		err = runRender(os.Args[2:])
	case "detect":
		err = runDetect()
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("mlviz %s: %v", os.Args[1], err)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	path := fs.String("config", "", "JSON config file")
	addr := fs.String("addr", "", "listen address (overrides config and MLVIZ_ADDR)")
	fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	srv := server.New(cfg)
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		log.Printf("shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	fmt.Printf("   GET  /                  - viewer\n")
	fmt.Printf("   GET  /api/demos         - demo list\n")
	fmt.Printf("   GET  /api/demos/:name   - snapshot (JSON)\n")
	fmt.Printf("   GET  /api/demos/:name/svg\n")
	fmt.Printf("   WS   /ws/:name          - live session (max %d)\n", cfg.Server.MaxSessions)
	return srv.Listen()
}

func runTUI(args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	path := fs.String("config", "", "JSON config file")
	fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	tc, delay, err := cfg.TransformerSettings()
	if err != nil {
		return err
	}
	a, err := transformer.NewAnimator(tc, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	a.SetDelay(delay)
	return tui.Run(a)
}

func runRender(args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	path := fs.String("config", "", "JSON config file")
	name := fs.String("demo", "transformer", "demo to render")
	ticks := fs.Int("ticks", 0, "ticks to run before rendering")
	out := fs.String("out", "", "output file (default stdout)")
	trace := fs.Bool("trace", false, "log scheduler events to stderr")
	fs.Parse(args)

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	clock := anim.NewFakeClock()
	d, err := lab.New(*name, cfg, clock)
	if err != nil {
		return err
	}
	defer d.Close()
	if *trace {
		d.Observe(&anim.ConsoleObserver{Name: *name, Verbose: true})
	}

	n, err := lab.RunTicks(d, clock, *ticks)
	if err != nil {
		return err
	}
	if n < *ticks {
		log.Printf("%s stopped after %d of %d ticks", *name, n, *ticks)
	}

	svg := d.SVG()
	if *out == "" {
		_, err = fmt.Println(svg)
		return err
	}
	if err := os.WriteFile(*out, []byte(svg), 0o644); err != nil {
		return err
	}
	fmt.Printf("✓ wrote %s (%d ticks, %d bytes)\n", *out, n, len(svg))
	return nil
}

func runDetect() error {
	js, err := detector.DetectJSON()
	if err != nil {
		return err
	}
	fmt.Println(js)
	return nil
}
