// Command rtdbclient-demo is the minimal glue wiring of the client: it
// loads a config and a schema pair, dials the endpoint, writes a minimal
// unsigned GET request, and prints every record the response stream yields, end to
// end. It is deliberately thin -- build dependencies, hand control to the
// library.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/embeddedrealtime/rtdbclient/internal/clientconfig"
	"github.com/embeddedrealtime/rtdbclient/internal/record"
	"github.com/embeddedrealtime/rtdbclient/internal/xlog"
	"github.com/embeddedrealtime/rtdbclient/public/rtdb"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rtdbclient-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a JSON config file matching internal/clientconfig.Spec()")
	textSchemaPath := flag.String("text-schema", "", "path to the text schema blob")
	binarySchemaPath := flag.String("binary-schema", "", "path to the binary reflection schema blob")
	requestPath := flag.String("path", "/", "HTTP request path to fetch")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	textSchema, err := os.ReadFile(*textSchemaPath)
	if err != nil {
		return fmt.Errorf("read text schema: %w", err)
	}
	binarySchema, err := os.ReadFile(*binarySchemaPath)
	if err != nil {
		return fmt.Errorf("read binary schema: %w", err)
	}

	logger := xlog.NewText(os.Stderr, slog.LevelInfo)

	client, err := rtdb.New(cfg, textSchema, binarySchema, logger)
	if err != nil {
		return fmt.Errorf("build client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	// HTTP request framing is out of this module's scope: a real deployment
	// assembles and signs its own request via client.Signer() before writing
	// it. This demo writes an unsigned request line with only Host and
	// Connection headers, sufficient to exercise the response-streaming path
	// end to end.
	if _, err := client.Transport().Write([]byte(requestLine(cfg.Host, *requestPath))); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	ok, correlationID := client.ParseStream(
		client.Transport(),
		rtdb.Subscription{
			Pattern:  nil,
			TypeName: cfg.SchemaRootType,
			Sink: func(r *record.Record) bool {
				printRecord(r)
				return true
			},
		},
		rtdb.Subscription{},
	)
	fmt.Fprintf(os.Stderr, "rtdbclient-demo: correlation_id=%s ok=%v\n", correlationID, ok)
	if !ok {
		return fmt.Errorf("stream reported an error; see logs for correlation_id=%s", correlationID)
	}
	return nil
}

func requestLine(host, path string) string {
	return fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nConnection: close\r\n\r\n", path, host)
}

func printRecord(r *record.Record) {
	// The demo has no generated struct for cfg.SchemaRootType, so it falls
	// back to internal/record.Record's own dynamic flattening.
	b, err := json.Marshal(r.Raw())
	if err != nil {
		fmt.Println(r.TypeName(), "<unprintable>")
		return
	}
	fmt.Println(string(b))
}

func loadConfig(path string) (*clientconfig.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return clientconfig.FromMap(m)
}
