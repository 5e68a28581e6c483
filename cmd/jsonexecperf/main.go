// Command jsonexecperf compares template execution against generic JSON
// encoders on a sample document.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/xdg-go/jsonexec"
)

// A bunyan-style request log line.
const builtinSample = `{
  "name": "MyApp", "hostname": "server", "pid": 22467, "audit": true,
  "level": "info", "remoteAddress": "127.0.0.1", "remotePort": 58539,
  "req_id": "-",
  "req": {
    "method": "GET", "url": "/healthcheck",
    "headers": {"host": "localhost:8888"},
    "httpVersion": "1.1", "trailers": {}, "version": "1.0.0", "timers": {}
  },
  "res": {"statusCode": 200, "trailer": false},
  "rusage": {
    "utime": 0, "stime": 0, "wtime": 0.00018252001609653234,
    "maxrss": 0, "inblock": 0, "oublock": 0
  },
  "query": "null", "latency": "null", "_audit": true,
  "msg": "handled: 200", "time": "2015-01-15T05:04:55.114Z", "v": 0,
  "requestId": "-"
}`

type config struct {
	file        string
	iterations  int
	defaultText string
	stringLimit int
	logLevel    string
}

func main() {
	cfg := &config{}
	app := kingpin.New("jsonexecperf", "Benchmark precompiled JSON templates against generic encoders.")
	app.HelpFlag.Short('h')
	app.Flag("iterations", "Encodings per encoder.").Short('n').Default("200000").IntVar(&cfg.iterations)
	app.Flag("default", "String emitted for absent fields.").StringVar(&cfg.defaultText)
	app.Flag("string-limit", "Longest string copied without escaping.").Default(fmt.Sprint(jsonexec.DefaultStringLimit)).IntVar(&cfg.stringLimit)
	app.Flag("log.level", "Only log messages with the given severity or above.").Default("info").EnumVar(&cfg.logLevel, "debug", "info", "warn", "error")
	app.Arg("sample", "Extended JSON file holding one sample document. Defaults to a built-in log line.").StringVar(&cfg.file)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(cfg.logLevel, level.InfoValue())))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)

	if err := run(cfg, logger); err != nil {
		level.Error(logger).Log("msg", "benchmark failed", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config, logger log.Logger) error {
	input := []byte(builtinSample)
	if cfg.file != "" {
		var err error
		input, err = os.ReadFile(cfg.file)
		if err != nil {
			return fmt.Errorf("reading sample: %w", err)
		}
	}

	// The driver's extended JSON reader keeps key order, which a Go map
	// would lose.
	var raw bson.Raw
	if err := bson.UnmarshalExtJSON(input, false, &raw); err != nil {
		return fmt.Errorf("parsing sample: %w", err)
	}
	obj, err := jsonexec.ObjectFromRaw(raw)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(input, &generic); err != nil {
		return fmt.Errorf("parsing sample: %w", err)
	}

	opts := []jsonexec.Option{jsonexec.WithStringLimit(cfg.stringLimit)}
	if cfg.defaultText != "" {
		opts = append(opts, jsonexec.WithDefault(cfg.defaultText))
	}
	start := time.Now()
	tmpl, err := jsonexec.Compile(raw, opts...)
	if err != nil {
		return err
	}
	level.Debug(logger).Log("msg", "compiled template", "fields", tmpl.NumFields(), "elapsed", time.Since(start), "template", tmpl)

	want := string(jsonexec.AppendValue(nil, obj))
	if got := tmpl.Execute(obj); got != want {
		return fmt.Errorf("template output differs from generic encoding:\ngot:  %s\nwant: %s", got, want)
	}
	if got := tmpl.Execute(raw); got != want {
		return fmt.Errorf("template output on bson differs from generic encoding:\ngot:  %s\nwant: %s", got, want)
	}
	level.Info(logger).Log("msg", "verified template output", "bytes", len(want))

	iter := jsoniter.ConfigCompatibleWithStandardLibrary

	benches := []struct {
		label string
		fn    func() int
	}{
		{"encoding/json", func() int {
			b, _ := json.Marshal(generic)
			return len(b)
		}},
		{"jsoniter", func() int {
			b, _ := iter.Marshal(generic)
			return len(b)
		}},
		{"jsonexec generic", func() int {
			return len(jsonexec.AppendValue(nil, obj))
		}},
		{"jsonexec object", func() int {
			return len(tmpl.Execute(obj))
		}},
		{"jsonexec bson", func() int {
			return len(tmpl.Execute(raw))
		}},
		{"jsonexec compile", func() int {
			t, _ := jsonexec.Compile(raw, opts...)
			return t.Len()
		}},
	}
	for _, b := range benches {
		bench(logger, b.label, cfg.iterations, b.fn)
	}
	return nil
}

func bench(logger log.Logger, label string, n int, fn func() int) {
	var size int
	start := time.Now()
	for i := 0; i < n; i++ {
		size += fn()
	}
	elapsed := time.Since(start)
	reportResult(logger, label, n, size, elapsed)
}

func reportResult(logger log.Logger, label string, n, size int, elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs == 0 {
		secs = 1e-9
	}
	level.Info(logger).Log(
		"encoder", label,
		"ops", n,
		"elapsed", elapsed,
		"ops_per_sec", humanize.Comma(int64(float64(n)/secs)),
		"throughput", humanize.Bytes(uint64(float64(size)/secs))+"/s",
	)
}
