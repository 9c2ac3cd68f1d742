package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/mooncake-db/bptreeidx/config"
	"github.com/mooncake-db/bptreeidx/internal/bptree"
	"github.com/mooncake-db/bptreeidx/internal/bufferpool"
	"github.com/mooncake-db/bptreeidx/internal/catalog"
	"github.com/mooncake-db/bptreeidx/internal/keycodec"
	"github.com/mooncake-db/bptreeidx/internal/storage"
)

// History is a simple append-only command log, loaded into readline's
// in-memory history on startup so arrow-key recall works immediately.
type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History { return &History{path: path} }

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := fmt.Fprintln(f, line); err != nil {
		return err
	}
	h.lines = append(h.lines, line)
	return nil
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".bptreecli_history"
	}
	return filepath.Join(home, ".bptreecli_history")
}

// openDefaults supplies the open command's fallback creation parameters
// when the caller doesn't spell them out on the command line. It starts
// at int/512/full and is overridden from config.BPTreeConfig when a
// -config file is given.
type openDefaults struct {
	keyType      string
	maxKeySize   int
	deletePolicy string
}

// session holds the one tree currently open in the REPL.
type session struct {
	cat      *catalog.Catalog
	pool     bufferpool.Manager
	tree     *bptree.Tree
	name     string
	defaults openDefaults
}

func (s *session) openOrCreate(name, keyTypeName string, maxKeySize int, policyName string) error {
	if s.tree != nil {
		_ = s.tree.Close()
		s.tree = nil
	}

	var kt keycodec.KeyType
	switch keyTypeName {
	case "int":
		kt = keycodec.KeyTypeInt
	case "str":
		kt = keycodec.KeyTypeStr
	default:
		return fmt.Errorf("unknown key type %q (want int or str)", keyTypeName)
	}

	var policy bptree.DeletePolicy
	switch policyName {
	case "full":
		policy = bptree.DeletePolicyFull
	case "naive":
		policy = bptree.DeletePolicyNaive
	default:
		return fmt.Errorf("unknown delete policy %q (want full or naive)", policyName)
	}

	tree, err := bptree.CreateOrOpen(name, kt, uint16(maxKeySize), policy, s.cat, s.pool, bptree.FuncWriter(func(line string) {
		fmt.Println("trace:", line)
	}))
	if err != nil {
		return err
	}
	s.tree = tree
	s.name = name
	return nil
}

func parseKey(kt keycodec.KeyType, s string) (keycodec.Key, error) {
	switch kt {
	case keycodec.KeyTypeInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return keycodec.Key{}, fmt.Errorf("bad int key %q: %w", s, err)
		}
		return keycodec.IntKey(v), nil
	case keycodec.KeyTypeStr:
		return keycodec.StrKey(s), nil
	default:
		return keycodec.Key{}, fmt.Errorf("tree has no key type set")
	}
}

func (s *session) handle(args []string) error {
	if s.tree == nil && args[0] != "open" {
		return fmt.Errorf("no index open; use: open <name> [int|str] [maxKeySize] [full|naive]")
	}

	switch args[0] {
	case "open":
		name := args[1]
		keyType, maxKeySize, policy := s.defaults.keyType, s.defaults.maxKeySize, s.defaults.deletePolicy
		if len(args) > 2 {
			keyType = args[2]
		}
		if len(args) > 3 {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				return err
			}
			maxKeySize = n
		}
		if len(args) > 4 {
			policy = args[4]
		}
		return s.openOrCreate(name, keyType, maxKeySize, policy)

	case "insert":
		if len(args) < 4 {
			return fmt.Errorf("usage: insert <key> <pageID> <slot>")
		}
		key, err := parseKey(s.tree.KeyType(), args[1])
		if err != nil {
			return err
		}
		pageID, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return err
		}
		slot, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return err
		}
		if err := s.tree.Insert(key, keycodec.RID{PageID: uint32(pageID), Slot: uint16(slot)}); err != nil {
			return err
		}
		fmt.Println("OK")
		return nil

	case "delete":
		if len(args) < 4 {
			return fmt.Errorf("usage: delete <key> <pageID> <slot>")
		}
		key, err := parseKey(s.tree.KeyType(), args[1])
		if err != nil {
			return err
		}
		pageID, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil {
			return err
		}
		slot, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return err
		}
		ok, err := s.tree.Delete(key, keycodec.RID{PageID: uint32(pageID), Slot: uint16(slot)})
		if err != nil {
			return err
		}
		fmt.Println("found:", ok)
		return nil

	case "scan":
		var lo, hi *keycodec.Key
		if len(args) > 1 && args[1] != "-" {
			k, err := parseKey(s.tree.KeyType(), args[1])
			if err != nil {
				return err
			}
			lo = &k
		}
		if len(args) > 2 && args[2] != "-" {
			k, err := parseKey(s.tree.KeyType(), args[2])
			if err != nil {
				return err
			}
			hi = &k
		}
		sc, err := s.tree.NewScan(lo, hi)
		if err != nil {
			return err
		}
		defer func() { _ = sc.Close() }()
		count := 0
		for {
			e, ok, err := sc.Next()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			fmt.Printf("%s -> page=%d slot=%d\n", e.Key, e.RID.PageID, e.RID.Slot)
			count++
		}
		fmt.Printf("(%d entries)\n", count)
		return nil

	case "stats":
		st, err := s.tree.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("leaves=%d index=%d height=%d keys=%d\n", st.LeafCount, st.IndexCount, st.Height, st.KeyCount)
		return nil

	case "destroy":
		if err := s.tree.Destroy(); err != nil {
			return err
		}
		s.tree = nil
		fmt.Println("OK")
		return nil

	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (see config.BPTreeConfig); overrides -dir/-frames and the open command's defaults")
		dataDir    = flag.String("dir", "./bptree-data", "directory holding segment files and the catalog")
		frames     = flag.Int("frames", 128, "buffer pool frame count")
		histPath   = flag.String("history", defaultHistoryPath(), "history file path")
	)
	flag.Parse()

	defaults := openDefaults{keyType: "int", maxKeySize: 512, deletePolicy: "full"}

	if *configPath != "" {
		cfg, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		if cfg.Storage.Dir != "" {
			*dataDir = cfg.Storage.Dir
		}
		if cfg.Storage.BufferPoolFrames > 0 {
			*frames = cfg.Storage.BufferPoolFrames
		}
		defaults.keyType = cfg.Index.KeyType
		defaults.deletePolicy = cfg.Index.DeletePolicy
		if cfg.Index.MaxKeySize > 0 {
			defaults.maxKeySize = cfg.Index.MaxKeySize
		}
		fmt.Printf("loaded config %s: dir=%s frames=%d keyType=%s maxKeySize=%d policy=%s\n",
			*configPath, *dataDir, *frames, defaults.keyType, defaults.maxKeySize, defaults.deletePolicy)
	}

	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", *dataDir, err)
		os.Exit(1)
	}

	cat, err := catalog.Open(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open catalog: %v\n", err)
		os.Exit(1)
	}

	sm := storage.NewStorageManager()
	fs := storage.LocalFileSet{Dir: *dataDir, Base: "bptree"}
	pool := bufferpool.NewPool(sm, fs, *frames)

	s := &session{cat: cat, pool: pool, defaults: defaults}

	h := NewHistory(*histPath)
	_ = h.Load(2000)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "bptree> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	fmt.Println("bptree cli; data dir:", *dataDir)
	fmt.Println("commands: open <name> [int|str] [maxKeySize] [full|naive] | insert <key> <pageID> <slot> | delete <key> <pageID> <slot> | scan [lo] [hi] | stats | destroy | \\q")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "\\q" || line == "quit" || line == "exit" {
			break
		}

		_ = h.Append(line)
		_ = rl.SaveHistory(line)

		if err := s.handle(strings.Fields(line)); err != nil {
			fmt.Println("error:", err)
		}
	}

	if s.tree != nil {
		_ = s.tree.Close()
	}
	if err := pool.FlushAll(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
	}
}
