// Command statemap manages keyed record maps persisted as YAML snapshots.
//
// Usage:
//
//	statemap --keys year,id upsert '{"year":2024,"id":1,"title":"Backend"}'
//	statemap --keys year,id list 2024 --where 'title startsWith "Back"'
//	statemap --keys year,id replace --at 2024 --file records.json
package main

import (
	"fmt"
	"os"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}
