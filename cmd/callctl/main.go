// Command callctl demonstrates the call package end-to-end: it drives an
// in-process client Call and server Call across the in-memory transport
// fake and prints the resulting final status, exercising the library
// without a real network connection (mirrors the reference codebase's
// flowctl/flowctl-go command trees, minus the Gazette-specific plumbing).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/jessevdk/go-flags"
	"google.golang.org/grpc/codes"

	"github.com/gridrpc/call/call"
	"github.com/gridrpc/call/cq"
	"github.com/gridrpc/call/transport"
)

// Config holds callctl's tunables, in the same long/description struct-tag
// style as the reference codebase's FlowConsumerConfig.
type Config struct {
	Path      string `long:"path" description:"Method path the demo client calls" default:"/demo.Service/Echo"`
	Message   string `long:"message" description:"Message payload the demo client sends" default:"hello"`
	FailCode  uint32 `long:"fail-code" description:"If non-zero, the demo server returns this grpc status code instead of OK"`
	FailMsg   string `long:"fail-message" description:"Message accompanying --fail-code"`
}

type cmdUnary struct {
	Config
}

func (cmd *cmdUnary) Execute(_ []string) error {
	return runUnary(cmd.Config)
}

func main() {
	var parser = flags.NewParser(nil, flags.HelpFlag|flags.PassDoubleDash)

	if _, err := parser.AddCommand("unary", "Run a demo unary call", `
Drive a single client/server unary exchange over the in-memory transport
fake and print the negotiated final status.
`, &cmdUnary{}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

type demoChannel struct{}

func (demoChannel) DefaultCompressionLevel() call.Level { return call.LevelNone }
func (demoChannel) Peer() string                        { return "callctl-demo-peer" }

func runUnary(cfg Config) error {
	clientStream, serverStream := transport.NewPair()

	clientCQ := cq.New()
	serverCQ := cq.New()

	client, err := call.Create(call.Args{
		Channel:         demoChannel{},
		Stream:          clientStream,
		CompletionQueue: clientCQ,
		IsClient:        true,
	})
	if err != nil {
		return err
	}
	server, err := call.Create(call.Args{
		Channel:         demoChannel{},
		Stream:          serverStream,
		CompletionQueue: serverCQ,
		IsClient:        false,
	})
	if err != nil {
		return err
	}

	var serverMessage []byte
	server.StartBatchAndExecute([]call.Op{
		{Kind: call.OpRecvInitialMetadata},
	}, func(error) {})
	server.StartBatchAndExecute([]call.Op{
		{Kind: call.OpRecvMessage, RecvMessageOut: &serverMessage},
	}, func(error) {})

	var clientFinal call.Final
	var clientMessage []byte
	client.StartBatch([]call.Op{
		{Kind: call.OpSendInitialMetadata, SendMetadata: transport.Metadata{{Key: ":path", Value: cfg.Path}}},
		{Kind: call.OpSendMessage, SendMessage: []byte(cfg.Message)},
		{Kind: call.OpSendCloseFromClient},
		{Kind: call.OpRecvInitialMetadata},
		{Kind: call.OpRecvMessage, RecvMessageOut: &clientMessage},
		{Kind: call.OpRecvStatusOnClient, RecvStatusOut: &clientFinal},
	}, "demo")

	var statusCode = uint32(codes.OK)
	if cfg.FailCode != 0 {
		statusCode = cfg.FailCode
	}
	server.StartBatchAndExecute([]call.Op{
		{Kind: call.OpSendInitialMetadata},
		{Kind: call.OpSendStatusFromServer, StatusCode: statusCode, StatusDetails: cfg.FailMsg, WantDetails: cfg.FailMsg != ""},
	}, func(error) {})

	// The in-memory fake delivers on its own goroutines, so wait (bounded by
	// drainOne's timeout) for the client batch's completion event.
	ev, found := drainOne(clientCQ)
	if !found {
		return fmt.Errorf("callctl: no completion observed")
	}
	_ = ev

	printFinal(clientFinal)
	fmt.Printf("server received message: %q\n", serverMessage)
	return nil
}

func drainOne(queue *cq.Queue) (cq.Event, bool) {
	var ctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ev, err := queue.Next(ctx)
	if err != nil {
		return cq.Event{}, false
	}
	return ev, true
}

func printFinal(final call.Final) {
	if final.Code == codes.OK {
		color.New(color.FgGreen).Printf("final status: OK\n")
		return
	}
	color.New(color.FgRed).Printf("final status: %s (%s)\n", final.Code, final.Message)
}
