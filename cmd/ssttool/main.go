// Command ssttool builds a table file from a stream of sorted entries
// (optionally seeded with fake data) and looks up a key in one.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-faker/faker/v4"
	"go.uber.org/zap"

	"lsmtable/bloomfilter"
	"lsmtable/sbm"
	"lsmtable/tableoptions"
	"lsmtable/tablereader"
	"lsmtable/tablewriter"
)

func main() {
	flag.Usage = func() {
		fmt.Println("\nssttool\n\nCommands:")
		fmt.Println("  build -out FILE -records N [-snappy] [-bloom]   build a table file seeded with fake data")
		fmt.Println("  get -in FILE -key KEY [-snappy]                 look up a key in a table file")
		flag.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "build":
		runBuild(os.Args[2:])
	case "get":
		runGet(os.Args[2:])
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func runBuild(args []string) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("out", "table.sst", "path of the table file to write")
	records := fs.Int("records", 1000, "number of fake records to seed")
	useSnappy := fs.Bool("snappy", false, "compress leaf data blocks with snappy")
	useBloom := fs.Bool("bloom", false, "build a bloom filter alongside the table")
	chunkSize := fs.Int("chunk-size", tableoptions.DefaultChunkSize, "entries per leaf data block")
	maxIndexBlockSize := fs.Int("max-index-block-size", tableoptions.DefaultMaxIndexBlockSize, "byte bound per index block")
	_ = fs.Parse(args)

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	sink, err := tablewriter.NewFileSink(*out)
	if err != nil {
		log.Fatal(err)
	}

	opts := tableoptions.Apply(
		tableoptions.WithSnappy(*useSnappy),
		tableoptions.WithChunkSize(*chunkSize),
		tableoptions.WithMaxIndexBlockSize(*maxIndexBlockSize),
	)

	writerOpts := []tablewriter.WriterOption{tablewriter.WithLogger(sugar)}
	var bloom *bloomfilter.Writer
	if *useBloom {
		bloom = bloomfilter.NewWriter(uint(*records), 0.01)
		writerOpts = append(writerOpts, tablewriter.WithBloomFilter(bloom))
	}

	w := tablewriter.NewWriter(sink, opts, writerOpts...)

	keys := make([]string, *records)
	for i := range keys {
		keys[i] = fmt.Sprintf("%s-%d", faker.Word(), i)
	}
	sort.Strings(keys)

	for i, k := range keys {
		value := faker.Sentence()
		key := sbm.Key{Bytes: []byte(k), SnapshotID: uint64(i)}
		if err := w.Add(key, sbm.Value(value)); err != nil {
			log.Fatal(err)
		}
	}

	root, err := w.Finish()
	if err != nil {
		log.Fatal(err)
	}

	if bloom != nil {
		blob, err := bloom.Finish()
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*out+".bloom", blob, 0644); err != nil {
			log.Fatal(err)
		}
	}

	fmt.Printf("wrote %d records to %s (root offset %d)\n", *records, *out, root)
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	in := fs.String("in", "table.sst", "path of the table file to read")
	key := fs.String("key", "", "key to look up")
	snapshotID := fs.Uint64("snapshot", 0, "snapshot id to look up")
	useSnappy := fs.Bool("snappy", false, "the table's leaf data blocks are snappy-compressed")
	_ = fs.Parse(args)

	if *key == "" {
		fmt.Fprintln(os.Stderr, "get: -key is required")
		os.Exit(1)
	}

	f, err := os.Open(*in)
	if err != nil {
		log.Fatal(err)
	}
	r, err := tablereader.Open(f, *useSnappy)
	if err != nil {
		log.Fatal(err)
	}
	defer r.Close()

	value, err := r.Get(sbm.Key{Bytes: []byte(*key), SnapshotID: *snapshotID})
	if err != nil {
		if errors.Is(err, tablereader.ErrKeyNotFound) {
			fmt.Println("not found")
			os.Exit(1)
		}
		log.Fatal(err)
	}

	fmt.Println(string(value))
}
