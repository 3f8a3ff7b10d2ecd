package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// deployLogCmd decodes the hourly zstd JSONL deploy logs and prints raw
// entries, newest file last. Filtering and pretty-printing are left to jq.
func deployLogCmd(args []string) {
	fs := flag.NewFlagSet("deploy-log", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "hosting data directory")
	hour := fs.String("hour", "", "only the given hour (format 2006-01-02-15)")
	_ = fs.Parse(args)

	dir := filepath.Join(*dataDir, "deploys")
	entries, err := os.ReadDir(dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "deploys-") || !strings.HasSuffix(name, ".jsonl.zst") {
			continue
		}
		if *hour != "" && name != "deploys-"+*hour+".jsonl.zst" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	sort.Strings(files)
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no deploy logs found")
		os.Exit(2)
	}

	for _, path := range files {
		if err := dumpLog(path); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
	}
}

func dumpLog(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec.IOReadCloser())
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		fmt.Println(sc.Text())
	}
	return sc.Err()
}
