// Command extmerge is the reference driver for the external sort library.
// It sorts binary record files (little-endian u64 count header, then
// records) and can generate random test inputs in the same format.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/sortio/extmerge"
	"github.com/sortio/extmerge/serial"
	"github.com/sortio/extmerge/stream"
)

const (
	defaultMemoryMB  = 64
	defaultFanOut    = 8
	defaultIOBuffer  = 1024
	defaultTempDir   = "temp_files"
	defaultMaxStrLen = 64
)

func main() {
	app := &cli.App{
		Name:  "extmerge",
		Usage: "external k-way merge sort over binary record files",
		Commands: []*cli.Command{
			sortCommand(),
			generateCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "extmerge: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(quiet bool) *logrus.Logger {
	log := logrus.New()
	if quiet {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func sortCommand() *cli.Command {
	return &cli.Command{
		Name:      "sort",
		Usage:     "sort a record file",
		ArgsUsage: "<input_file> <output_file> [memory_limit_mb] [k] [io_buffer_records] [temp_dir]",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "descending", Usage: "sort in descending order"},
			&cli.BoolFlag{Name: "strings", Usage: "records are length-prefixed strings instead of uint64"},
			&cli.StringFlag{Name: "memory", Usage: "memory budget with unit, e.g. 64MB; overrides the positional limit"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log warnings and errors"},
		},
		Action: runSort,
	}
}

func runSort(c *cli.Context) error {
	args := c.Args()
	if args.Len() < 2 {
		return cli.Exit("sort requires <input_file> and <output_file>", 1)
	}
	input := args.Get(0)
	output := args.Get(1)

	memoryBytes := uint64(defaultMemoryMB) << 20
	if v := args.Get(2); v != "" {
		mb, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("memory_limit_mb %q: %w", v, err)
		}
		memoryBytes = mb << 20
	}
	if v := c.String("memory"); v != "" {
		parsed, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("memory %q: %w", v, err)
		}
		memoryBytes = parsed
	}

	fanOut := uint64(defaultFanOut)
	if v := args.Get(3); v != "" {
		k, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("k %q: %w", v, err)
		}
		fanOut = k
	}
	ioBuffer := defaultIOBuffer
	if v := args.Get(4); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("io_buffer_records %q: %w", v, err)
		}
		ioBuffer = n
	}
	tempDir := defaultTempDir
	if v := args.Get(5); v != "" {
		tempDir = v
	}

	log := newLogger(c.Bool("quiet"))
	opts := &extmerge.Options{
		MemoryBytes:     memoryBytes,
		FanOut:          fanOut,
		IOBufferRecords: ioBuffer,
		Descending:      c.Bool("descending"),
		Logger:          log,
	}
	log.Infof("sorting %s into %s with %s memory, k=%d, io buffer %d records",
		input, output, humanize.IBytes(memoryBytes), fanOut, ioBuffer)

	if c.Bool("strings") {
		return sortFile(serial.String(), strings.Compare, input, output, tempDir, opts, log)
	}
	ser, err := serial.POD[uint64]()
	if err != nil {
		return err
	}
	return sortFile(ser, compareOrdered[uint64], input, output, tempDir, opts, log)
}

func compareOrdered[E uint64 | int64](a, b E) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func sortFile[E any](ser serial.Serializer[E], compare extmerge.Compare[E], input, output, tempDir string, opts *extmerge.Options, log logrus.FieldLogger) error {
	factory, err := stream.NewFileFactory[E](ser, tempDir, log)
	if err != nil {
		return err
	}
	defer factory.Close()
	if err := extmerge.Sort[E](factory, ser, compare, input, output, opts); err != nil {
		return err
	}
	log.Infof("sorted %s into %s", input, output)
	return nil
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "write a random record file for testing",
		ArgsUsage: "<output_file> <count>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "strings", Usage: "generate length-prefixed strings instead of uint64"},
			&cli.Int64Flag{Name: "seed", Usage: "PRNG seed", Value: 1},
			&cli.IntFlag{Name: "max-len", Usage: "maximum string length", Value: defaultMaxStrLen},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "only log warnings and errors"},
		},
		Action: runGenerate,
	}
}

func runGenerate(c *cli.Context) error {
	args := c.Args()
	if args.Len() < 2 {
		return cli.Exit("generate requires <output_file> and <count>", 1)
	}
	output := args.Get(0)
	count, err := strconv.ParseUint(args.Get(1), 10, 64)
	if err != nil {
		return fmt.Errorf("count %q: %w", args.Get(1), err)
	}

	log := newLogger(c.Bool("quiet"))
	rng := rand.New(rand.NewSource(c.Int64("seed")))

	if c.Bool("strings") {
		maxLen := c.Int("max-len")
		return generateFile(serial.String(), output, count, log, func() string {
			return randomString(rng, maxLen)
		})
	}
	ser, err := serial.POD[uint64]()
	if err != nil {
		return err
	}
	return generateFile(ser, output, count, log, rng.Uint64)
}

// generateFile runs a producer goroutine feeding a writer through a
// channel, so generation cost and encoding cost overlap.
func generateFile[E any](ser serial.Serializer[E], output string, count uint64, log logrus.FieldLogger, next func() E) error {
	factory, err := stream.NewFileFactory[E](ser, "", log)
	if err != nil {
		return err
	}
	defer factory.Close()

	out, err := factory.CreateOutput(output, defaultIOBuffer)
	if err != nil {
		return err
	}
	defer out.Close()

	records := make(chan E, defaultIOBuffer)
	var group errgroup.Group
	group.Go(func() error {
		defer close(records)
		for i := uint64(0); i < count; i++ {
			records <- next()
		}
		return nil
	})
	group.Go(func() error {
		for rec := range records {
			if err := out.Write(rec); err != nil {
				return err
			}
		}
		return out.Finalize()
	})
	if err := group.Wait(); err != nil {
		return err
	}
	log.Infof("wrote %d records (%s) to %s", out.Written(), humanize.IBytes(out.BytesWritten()), output)
	return nil
}

const stringAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomString(rng *rand.Rand, maxLen int) string {
	n := 1 + rng.Intn(maxLen)
	b := make([]byte, n)
	for i := range b {
		b[i] = stringAlphabet[rng.Intn(len(stringAlphabet))]
	}
	return string(b)
}
