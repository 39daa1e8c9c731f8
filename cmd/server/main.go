package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/adrianfalk/rga/bus"
	"github.com/adrianfalk/rga/server"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addr := flag.String("addr", ":8009", "address to listen on")
	queueBuffer := flag.Int("queue_buffer", 64, "buffered task count for the central replica's broadcast queue")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	queue := bus.NewGoQueue(*queueBuffer)
	defer queue.Close()

	s, err := server.NewServer(queue, log)
	if err != nil {
		return err
	}

	return s.ListenAndServe(*addr)
}
