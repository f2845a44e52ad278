// Package config defines the disburser's configuration surface and loads
// it the way a long-running node typically loads its config: an INI file
// overlaid with command-line flags, both parsed by jessevdk/go-flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename  = "disburser.conf"
	defaultLogFilename     = "disburser.log"
	defaultJournalFilename = "completed.journal"
	defaultFailedLogFile   = "failed.log"
	defaultMaxLogFiles     = 3
	defaultMetricsListenAddr = ":9112"

	// DefaultMinConfirmations is the minimum confirmation count a UTXO
	// must carry before it is selectable.
	DefaultMinConfirmations = 1

	// DefaultRequestTimeoutSeconds bounds every chain and pool gateway
	// HTTP round trip.
	DefaultRequestTimeoutSeconds = 30

	// DefaultRetries is how many attempts, the first included, are made
	// for a chain RPC call that fails with a transport-classified error
	// before the error is returned.
	DefaultRetries = 3

	// DefaultPollIntervalSeconds is how often automated mode asks the
	// pool gateway for new pending obligations.
	DefaultPollIntervalSeconds = 60

	// DefaultBatchSize caps how many obligations one automated iteration
	// pulls from the pool gateway at a time.
	DefaultBatchSize = 200

	// DefaultBlockPeriod is how many new blocks must elapse before
	// automated mode runs another batch.
	DefaultBlockPeriod = 1
)

// PoolConfig names the Pool Gateway's connection parameters.
type PoolConfig struct {
	BaseURL          string `long:"baseurl" description:"Base URL of the pool payout API"`
	PoolID           string `long:"poolid" description:"Pool identifier sent on every pool API request"`
	APIKey           string `long:"apikey" description:"Bearer API key for the pool payout API"`
	RequestTimeoutS  int    `long:"requesttimeout" description:"Pool API request timeout, in seconds" default:"30"`
}

// ChainConfig names the Chain Gateway's connection parameters.
type ChainConfig struct {
	RPCURL           string `long:"rpcurl" description:"JSON-RPC URL of the chain node"`
	RPCUser          string `long:"rpcuser" description:"JSON-RPC username"`
	RPCPassword      string `long:"rpcpass" description:"JSON-RPC password" json:"-"`
	Wallet           string `long:"wallet" description:"Wallet name the chain node should operate against"`
	AddressHRP       string `long:"addresshrp" description:"Expected bech32 human-readable part for payout addresses"`
	RequestTimeoutS  int    `long:"requesttimeout" description:"Chain RPC request timeout, in seconds" default:"30"`
	Retries          int    `long:"retries" description:"Number of attempts (first included) for transport-classified RPC failures" default:"3"`
	MinConfirmations int64  `long:"minconfirmations" description:"Minimum confirmations a UTXO must carry to be selectable" default:"1"`
	FeeRatePerByte   int64  `long:"feeratatoms" description:"Fee rate in atoms per byte"`
	DustThresholdAtoms int64 `long:"dustthresholdatoms" description:"Change below this many atoms is surrendered to fee"`
}

// AutomationConfig names the parameters governing automated mode
// automated (unattended) dispatch.
type AutomationConfig struct {
	Enabled           bool `long:"enabled" description:"Run in automated (unattended) mode instead of interactive mode"`
	BatchSize         int  `long:"batchsize" description:"Maximum obligations pulled per automated iteration" default:"200"`
	BlockPeriod       int64 `long:"blockperiod" description:"Minimum new blocks between automated iterations" default:"1"`
	PollIntervalS     int  `long:"pollinterval" description:"Seconds between automated polling attempts" default:"60"`
	MinWalletBalance  int64 `long:"minwalletbalance" description:"Minimum wallet balance (in atoms) required to run an automated iteration"`
}

// JournalConfig names where the durable completion journal and the
// residual failed-payment log live on disk.
type JournalConfig struct {
	JournalPath string `long:"journalpath" description:"Path to the completion journal file"`
	FailedLogPath string `long:"failedlogpath" description:"Path to the append-only failed-payment log"`
}

// MetricsConfig names the Prometheus scrape endpoint's listen address.
// Only consulted in automated mode; interactive runs are operator-attended
// and have no long-lived process to scrape.
type MetricsConfig struct {
	ListenAddr string `long:"listenaddr" description:"Address to serve Prometheus metrics on in automated mode (empty disables it)" default:":9112"`
}

// Config is the disburser's root configuration, composed the way the
// teacher composes its node config from sub-structs tagged for go-flags.
type Config struct {
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `long:"configfile" description:"Path to configuration file"`
	LogDir      string `long:"logdir" description:"Directory to log output to"`
	MaxLogFiles int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)" default:"3"`
	DebugLevel  string `long:"debuglevel" description:"Logging level for all subsystems" default:"info"`

	Pool       PoolConfig       `group:"Pool" namespace:"pool"`
	Chain      ChainConfig      `group:"Chain" namespace:"chain"`
	Automation AutomationConfig `group:"Automation" namespace:"automation"`
	Journal    JournalConfig    `group:"Journal" namespace:"journal"`
	Metrics    MetricsConfig    `group:"Metrics" namespace:"metrics"`
}

// DefaultConfig returns a Config populated with the disburser's documented
// defaults, prior to any file or flag overlay.
func DefaultConfig() Config {
	return Config{
		LogDir:      "logs",
		MaxLogFiles: defaultMaxLogFiles,
		DebugLevel:  "info",
		Pool: PoolConfig{
			RequestTimeoutS: DefaultRequestTimeoutSeconds,
		},
		Chain: ChainConfig{
			RequestTimeoutS:  DefaultRequestTimeoutSeconds,
			Retries:          DefaultRetries,
			MinConfirmations: DefaultMinConfirmations,
		},
		Automation: AutomationConfig{
			BatchSize:     DefaultBatchSize,
			BlockPeriod:   DefaultBlockPeriod,
			PollIntervalS: DefaultPollIntervalSeconds,
		},
		Journal: JournalConfig{
			JournalPath:   defaultJournalFilename,
			FailedLogPath: defaultFailedLogFile,
		},
		Metrics: MetricsConfig{
			ListenAddr: defaultMetricsListenAddr,
		},
	}
}

// Load parses command-line arguments over the defaults, applying an INI
// config file first if one is present, using a two-pass
// load (file, then flags override file) so the command line always wins.
func Load(args []string) (*Config, error) {
	cfg := DefaultConfig()

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default|flags.IgnoreUnknown)
	if _, err := preParser.ParseArgs(args); err != nil {
		return nil, err
	}

	if preCfg.ConfigFile != "" {
		if err := flags.IniParse(preCfg.ConfigFile, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: parsing %s: %w", preCfg.ConfigFile, err)
			}
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.LogDir != "" {
		cfg.LogDir = filepath.Clean(cfg.LogDir)
	}
	return &cfg, nil
}
