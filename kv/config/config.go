package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/docker/go-units"
	"github.com/ngaut/log"
	"github.com/pingcap/errors"
)

type Config struct {
	LogLevel string `toml:"log-level"`

	DBPath string `toml:"db-path"` // Directory to store the data in. Should exist and be writable.

	Engine Engine `toml:"engine"` // Options for disk backed tiers.
	Store  Store  `toml:"store"`
	Txn    Txn    `toml:"txn"`
}

type Engine struct {
	ValueThreshold   int      `toml:"value-threshold"`     // If value size >= this threshold, only store value offsets in tree.
	MaxTableSize     ByteSize `toml:"max-table-size"`      // Each table is at most this size.
	NumMemTables     int      `toml:"num-mem-tables"`      // Maximum number of tables to keep in memory, before stalling.
	NumL0Tables      int      `toml:"num-L0-tables"`       // Maximum number of Level 0 tables before we start compacting.
	NumL0TablesStall int      `toml:"num-L0-tables-stall"` // Maximum number of Level 0 tables before stalling.
	VlogFileSize     ByteSize `toml:"vlog-file-size"`      // Value log file size.
	BlockCacheSize   ByteSize `toml:"block-cache-size"`

	// Sync all writes to disk. Setting this to true would slow down data loading significantly.
	SyncWrite     bool `toml:"sync-write"`
	NumCompactors int  `toml:"num-compactors"`
}

// Store selects the engine of each tier of the versioned store. An empty engine name disables the tier. Commits
// always land in the hot tier.
type Store struct {
	Hot  string `toml:"hot"`
	Warm string `toml:"warm"`
	Cold string `toml:"cold"`
	// Unversioned names the engine holding single-version keys.
	Unversioned string `toml:"unversioned"`

	// Number of physical entries fetched from a tier per range scan round trip.
	TierScanChunkSize int `toml:"tier-scan-chunk-size"`
	// Number of logical keys a versioned iterator fetches per batch.
	ScanBatchSize int `toml:"scan-batch-size"`
}

type Txn struct {
	// Detect write-write conflicts at commit time.
	DetectConflicts bool `toml:"detect-conflicts"`
}

// ByteSize is a size in bytes which reads human readable values such as "64MB" from config files.
type ByteSize uint64

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := units.RAMInBytes(string(text))
	if err != nil {
		return errors.Annotatef(err, "parse size %q", text)
	}
	if n < 0 {
		return errors.Errorf("negative size %q", text)
	}
	*b = ByteSize(n)
	return nil
}

func (b ByteSize) String() string {
	return units.BytesSize(float64(b))
}

const (
	KB uint64 = 1024
	MB uint64 = 1024 * 1024
)

const (
	EngineMemory  = "memory"
	EngineBadger  = "badger"
	EngineLevelDB = "leveldb"
)

func (c *Config) Validate() error {
	if c.Store.Hot == "" {
		return fmt.Errorf("hot tier must be configured")
	}
	if c.Store.Unversioned == "" {
		return fmt.Errorf("unversioned engine must be configured")
	}
	for _, engine := range []string{c.Store.Hot, c.Store.Warm, c.Store.Cold, c.Store.Unversioned} {
		switch engine {
		case "", EngineMemory, EngineBadger, EngineLevelDB:
		default:
			return fmt.Errorf("unknown engine %q", engine)
		}
	}
	if c.Store.TierScanChunkSize <= 0 {
		return fmt.Errorf("tier scan chunk size must be greater than 0")
	}
	if c.Store.ScanBatchSize <= 0 {
		return fmt.Errorf("scan batch size must be greater than 0")
	}
	if c.Store.Warm == c.Store.Hot && c.Store.Hot != EngineMemory {
		log.Warnf("warm tier uses the same engine as the hot tier (%s), they will live in separate directories",
			c.Store.Hot)
	}

	return nil
}

func getLogLevel() (logLevel string) {
	logLevel = "info"
	if l := os.Getenv("LOG_LEVEL"); len(l) != 0 {
		logLevel = l
	}
	return
}

func defaultEngine() Engine {
	return Engine{
		ValueThreshold:   256,
		MaxTableSize:     ByteSize(64 * MB),
		NumMemTables:     3,
		NumL0Tables:      4,
		NumL0TablesStall: 8,
		VlogFileSize:     ByteSize(256 * MB),
		BlockCacheSize:   ByteSize(64 * MB),
		SyncWrite:        true,
		NumCompactors:    1,
	}
}

func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: getLogLevel(),
		DBPath:   "/tmp/tinymvcc",
		Engine:   defaultEngine(),
		Store: Store{
			Hot:               EngineBadger,
			Unversioned:       EngineBadger,
			TierScanChunkSize: 4096,
			ScanBatchSize:     1024,
		},
		Txn: Txn{DetectConflicts: true},
	}
}

// NewTestConfig returns a config which keeps every tier in memory.
func NewTestConfig() *Config {
	conf := NewDefaultConfig()
	conf.Engine.SyncWrite = false
	conf.Store = Store{
		Hot:               EngineMemory,
		Unversioned:       EngineMemory,
		TierScanChunkSize: 16,
		ScanBatchSize:     8,
	}
	return conf
}

// LoadConfig reads a toml file on top of the default config.
func LoadConfig(path string) (*Config, error) {
	conf := NewDefaultConfig()
	if _, err := toml.DecodeFile(path, conf); err != nil {
		return nil, errors.Annotatef(err, "load config %s", path)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}
