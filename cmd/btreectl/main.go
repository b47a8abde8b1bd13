// Command btreectl is an interactive REPL for exercising a corestore
// B+Tree end to end: insert, get, remove, scan, empty, and flush, all backed
// by a real segmented file set on disk.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/novasql/corestore/internal/btree"
	"github.com/novasql/corestore/internal/bufferpool"
	"github.com/novasql/corestore/internal/diskmgr"
	"github.com/novasql/corestore/internal/walshim"
	"github.com/novasql/corestore/pkg/clockx"
)

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".corestore_history"
	}
	return home + "/.corestore_history"
}

func main() {
	var (
		dataDir     = flag.String("data-dir", "./data", "directory holding segment files")
		indexName   = flag.String("index", "default", "index name for root-id persistence")
		poolSize    = flag.Int("pool-size", 64, "number of buffer pool frames")
		leafMax     = flag.Int("leaf-max", 32, "leaf page max entries")
		internalMax = flag.Int("internal-max", 32, "internal page max entries")
		replacer    = flag.String("replacer", "lru", "replacement policy: lru or clock")
		walEnabled  = flag.Bool("wal", false, "enable the redo page-image log")
		histPath    = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	disk, err := diskmgr.NewFileManager(*dataDir, "btreectl")
	if err != nil {
		fmt.Fprintf(os.Stderr, "open disk manager: %v\n", err)
		os.Exit(1)
	}

	var opts []bufferpool.Option
	if *replacer == "clock" {
		opts = append(opts, bufferpool.WithReplacer(clockx.NewAdapter(*poolSize)))
	}
	if *walEnabled {
		w, err := walshim.Open(*dataDir, diskmgr.PageSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open wal: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = w.Close() }()
		opts = append(opts, bufferpool.WithWAL(w))
	}

	bpm := bufferpool.NewManager(*poolSize, disk, opts...)
	defer func() {
		if err := bpm.Close(); err != nil {
			slog.Error("btreectl: close buffer pool", "err", err)
		}
	}()

	tree, err := btree.New(*indexName, bpm, btree.DefaultComparator, int32(*leafMax), int32(*internalMax))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open tree: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = tree.Close() }()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "corestore> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		HistoryFile:     *histPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	fmt.Printf("corestore index %q over %s (pool=%d, %s)\n", *indexName, *dataDir, *poolSize, *replacer)
	fmt.Println("type \\help for commands")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := dispatch(tree, bpm, line); err != nil {
			if err == errQuit {
				return
			}
			fmt.Printf("error: %v\n", err)
		}
	}
}

var errQuit = fmt.Errorf("quit")

func dispatch(tree *btree.Tree, bpm *bufferpool.Manager, line string) error {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "\\q", "quit", "exit":
		return errQuit

	case "\\help":
		fmt.Println(`commands:
  insert <key> <rid-page> [rid-slot]   insert key -> RID
  get <key>                            look up key
  remove <key>                         delete key
  scan [from-key]                      iterate ascending, optionally from a key
  empty                                report whether the tree is empty
  flush                                flush every dirty page to disk
  \help                                show this help
  \q | quit | exit                     quit`)
		return nil

	case "insert":
		return cmdInsert(tree, args)

	case "get":
		return cmdGet(tree, args)

	case "remove":
		return cmdRemove(tree, args)

	case "scan":
		return cmdScan(tree, args)

	case "empty":
		fmt.Println(tree.IsEmpty())
		return nil

	case "flush":
		return bpm.FlushAllPages()

	default:
		return fmt.Errorf("unknown command: %s (try \\help)", cmd)
	}
}

func parseKey(s string) (btree.KeyType, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return btree.KeyType{}, fmt.Errorf("bad key %q: %w", s, err)
	}
	return btree.KeyType{Value: n}, nil
}

func cmdInsert(tree *btree.Tree, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <key> <rid-page> [rid-slot]")
	}
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	page, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad rid-page %q: %w", args[1], err)
	}
	var slot uint64
	if len(args) > 2 {
		slot, err = strconv.ParseUint(args[2], 10, 16)
		if err != nil {
			return fmt.Errorf("bad rid-slot %q: %w", args[2], err)
		}
	}

	ok, err := tree.Insert(key, btree.RID{PageID: uint32(page), Slot: uint16(slot)})
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("key already present")
		return nil
	}
	fmt.Println("OK")
	return nil
}

func cmdGet(tree *btree.Tree, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get <key>")
	}
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	val, ok, err := tree.GetValue(key)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("not found")
		return nil
	}
	fmt.Println(val.String())
	return nil
}

func cmdRemove(tree *btree.Tree, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <key>")
	}
	key, err := parseKey(args[0])
	if err != nil {
		return err
	}
	return tree.Remove(key)
}

func cmdScan(tree *btree.Tree, args []string) error {
	var it *btree.IndexIterator
	var err error
	if len(args) > 0 {
		key, perr := parseKey(args[0])
		if perr != nil {
			return perr
		}
		it, err = tree.BeginKey(key)
	} else {
		it, err = tree.Begin()
	}
	if err != nil {
		return err
	}
	defer it.Close()

	count := 0
	for it.Valid() {
		fmt.Printf("%d -> %s\n", it.Key().Value, it.Value().String())
		count++
		if err := it.Next(); err != nil {
			return err
		}
	}
	fmt.Printf("(%d entries)\n", count)
	return nil
}
