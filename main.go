/*
Lumen renders a scene of rectangles, images and bitmap text into a PNG,
optionally watching the assets and showing the result in a preview window.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/term"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/testbed"
)

func main() {
	configPath := flag.String("config", "testbed/assets/lumen.toml", "TOML configuration file, empty for defaults")
	out := flag.String("out", "", "PNG output path, - for stdout (overrides output.path)")
	exportShaders := flag.String("export-shaders", "", "write the generated shaders to this directory and exit")
	preview := flag.Bool("preview", false, "open the preview window")
	watch := flag.Bool("watch", false, "re-render whenever an asset changes")
	flag.Parse()

	config := engine.DefaultApplicationConfig()
	if *configPath != "" {
		c, err := engine.LoadApplicationConfig(*configPath)
		if err != nil {
			core.LogFatal("%s", err)
		}
		config = c
	}
	if *out != "" {
		config.Output.Path = *out
	}
	config.Application.Preview = config.Application.Preview || *preview
	config.Application.Watch = config.Application.Watch || *watch

	if config.Output.Path == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "refusing to write PNG data to a terminal, redirect stdout or pass -out")
		os.Exit(2)
	}

	tb, err := testbed.NewTestGame(config)
	if err != nil {
		panic(err)
	}

	engine, err := engine.New(tb.Game)
	if err != nil {
		panic(err)
	}

	if *exportShaders != "" {
		if err := engine.ExportShaders(*exportShaders); err != nil {
			core.LogFatal("%s", err)
		}
		return
	}

	if err := engine.Initialize(); err != nil {
		_ = engine.Shutdown()
		core.LogFatal("%s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	// ask the run loop to stop, Shutdown happens once Run returns
	go func() {
		<-sigCh
		core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
	}()

	// run engine
	runErr := engine.Run(context.Background())
	if err := engine.Shutdown(); err != nil {
		core.LogError("%s", err)
	}
	if runErr != nil {
		core.LogFatal("%s", runErr)
	}
}
