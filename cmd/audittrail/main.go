// Command audittrail inspects JSONL audit logs produced by the library:
// verify walks the hash chain, export rewrites entries as JSON, JSONL or
// CSV.
//
//	audittrail verify -file audit.jsonl [-algorithm sha256]
//	audittrail export -file audit.jsonl -format csv -out audit.csv
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/spounge-ai/audittrail/pkg/audit/chain"
	"github.com/spounge-ai/audittrail/pkg/audit/export"
	"github.com/spounge-ai/audittrail/pkg/audit/persistence"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	switch os.Args[1] {
	case "verify":
		runVerify(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: audittrail <verify|export> [flags]")
	os.Exit(2)
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("file", "", "path to the JSONL audit log")
	algorithm := fs.String("algorithm", "sha256", "chain digest algorithm (sha256|sha512)")
	fs.Parse(args)

	if *file == "" {
		log.Fatal("verify: -file is required")
	}

	entries, err := persistence.ReadJSONL(*file)
	if err != nil {
		log.Fatalf("verify: %v", err)
	}

	result := chain.Verify(chain.Algorithm(*algorithm), entries)
	if result.Valid {
		fmt.Printf("chain valid: %d entries\n", len(entries))
		return
	}
	fmt.Printf("chain BROKEN at index %d: %s\n", result.BrokenAt, result.Err)
	os.Exit(1)
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	file := fs.String("file", "", "path to the JSONL audit log")
	format := fs.String("format", "json", "export format (json|jsonl|csv)")
	out := fs.String("out", "", "output path")
	fs.Parse(args)

	if *file == "" || *out == "" {
		log.Fatal("export: -file and -out are required")
	}

	entries, err := persistence.ReadJSONL(*file)
	if err != nil {
		log.Fatalf("export: %v", err)
	}
	if err := export.ToFile(*out, entries, export.Format(*format)); err != nil {
		log.Fatalf("export: %v", err)
	}
	fmt.Printf("exported %d entries to %s\n", len(entries), *out)
}
