package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/docopt/docopt-go"

	"github.com/slatelabs/slatesync/internal/client"
)

const version = "0.1.0"

const usage = `Slate synchronization client.

Connects to a slate server and either watches committed changes or submits a
single edit.

Usage:
    client watch [--url=<url>]
    client edit <id> <value> [--url=<url>]

Options:
    -h --help      Show this screen.
    --version      Show version.
    --url=<url>    Server websocket URL [default: ws://localhost:8080/ws].`

func main() {
	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		log.Fatal(err)
	}

	url, _ := opts.String("--url")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := client.New(url)

	errs := make(chan error, 1)
	go func() {
		errs <- c.Run(ctx)
	}()

	initCtx, initCancel := context.WithTimeout(ctx, 10*time.Second)
	defer initCancel()
	if err := c.WaitInitialized(initCtx); err != nil {
		log.Fatalf("Initialization failed: %v", err)
	}

	identity, _ := c.Identity()
	log.Printf("Connected as %s", identity.Description())

	if edit, _ := opts.Bool("edit"); edit {
		id, err := opts.Int("<id>")
		if err != nil {
			log.Fatalf("Invalid line id: %v", err)
		}
		value, _ := opts.String("<value>")

		c.Edit(id, value)

		// Wait briefly for the committed value to come back, which happens
		// whenever the server corrects the submitted value.
		timer := time.NewTimer(2 * time.Second)
		defer timer.Stop()
		for {
			select {
			case line := <-c.Updates():
				if line.ID == id {
					fmt.Printf("committed: %v\n", line)
					return
				}
			case <-timer.C:
				fmt.Printf("submitted: line %d = %q\n", id, value)
				return
			case err := <-errs:
				log.Fatalf("Connection ended: %v", err)
			}
		}
	}

	for {
		select {
		case line := <-c.Updates():
			fmt.Printf("update: %v\n", line)
		case err := <-errs:
			log.Fatalf("Connection ended: %v", err)
		}
	}
}
