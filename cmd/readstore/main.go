// readstore dumps the keys of a store directory, grouped by object kind.
// Debugging tool; do not run it against a store a daemon has open.
package main

import (
	"bytes"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/dgraph-io/badger/v4"
)

func main() {
	dataPath := flag.String("data", "./data", "Path to data directory")
	verbose := flag.Bool("v", false, "Print every key, not just the counts")
	flag.Parse()

	opts := badger.DefaultOptions(*dataPath)
	opts.Logger = nil
	opts.ReadOnly = true
	db, err := badger.Open(opts)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	counts := make(map[string]int)
	var total int

	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().Key()
			kind := "other"
			if i := bytes.IndexByte(key, ':'); i >= 0 {
				kind = string(key[:i])
			}
			counts[kind]++
			total++
			if *verbose {
				if i := bytes.IndexByte(key, ':'); i >= 0 {
					fmt.Printf("%s %s\n", key[:i], hex.EncodeToString(key[i+1:]))
				} else {
					fmt.Printf("other %q\n", key)
				}
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	for kind, n := range counts {
		fmt.Printf("%s: %d\n", kind, n)
	}
	fmt.Printf("Total number of keys: %d\n", total)
}
