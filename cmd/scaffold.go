// Package cmd provides the scaffolding shared by the node binaries:
// configuration loading, logging, the badger database, the chain state,
// metrics, the network, and an ordered component lifecycle with clean
// startup and shutdown.
package cmd

import (
	"context"
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	retry "github.com/sethvargo/go-retry"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Cardinal-Cryptography/alephsync/model/chain"
	"github.com/Cardinal-Cryptography/alephsync/module"
	"github.com/Cardinal-Cryptography/alephsync/module/metrics"
	"github.com/Cardinal-Cryptography/alephsync/network"
	cborcodec "github.com/Cardinal-Cryptography/alephsync/network/codec/cbor"
	"github.com/Cardinal-Cryptography/alephsync/network/stub"
	"github.com/Cardinal-Cryptography/alephsync/state"
	statebadger "github.com/Cardinal-Cryptography/alephsync/state/badger"
	"github.com/Cardinal-Cryptography/alephsync/storage"
	storagebadger "github.com/Cardinal-Cryptography/alephsync/storage/badger"
)

// envPrefix is the prefix of the environment variables overriding flags, so
// --metrics-port becomes ALEPHSYNC_METRICS_PORT.
const envPrefix = "ALEPHSYNC"

// BaseConfig is the configuration shared by every node. Values are bound to
// command line flags and can be overridden through the environment or an
// optional config file; flags set explicitly always win.
type BaseConfig struct {
	NodeID            string        `validate:"omitempty,len=64,hexadecimal"`
	DataDir           string        `validate:"required"`
	Level             string        `validate:"required"`
	Console           bool          ``
	Timeout           time.Duration `validate:"gt=0"`
	ConfigFile        string        ``
	GenesisFile       string        ``
	SessionPeriod     uint64        `validate:"gt=0"`
	BroadcastInterval time.Duration `validate:"gte=0"`
	ScanInterval      time.Duration `validate:"gt=0"`
	MetricsPort       uint          `validate:"gt=0,lte=65535"`
	Profiler          bool          ``
}

// genesisFile describes the chain root on disk. Number and parent hash are
// only needed when the root is a snapshot above the true genesis.
type genesisFile struct {
	Hash       string `json:"hash" validate:"required,len=64,hexadecimal"`
	Number     uint64 `json:"number"`
	ParentHash string `json:"parent_hash" validate:"omitempty,len=64,hexadecimal"`
	Proof      string `json:"proof" validate:"omitempty,hexadecimal"`
}

type namedComponentFn struct {
	fn   func(*NodeBuilder) (module.ReadyDoneAware, error)
	name string
}

type namedDoneObject struct {
	ob   module.ReadyDoneAware
	name string
}

// NodeBuilder accumulates the pieces of a node and runs them. Mains register
// their components and call Run; the builder initializes the shared
// infrastructure first and hands it to the component constructors.
type NodeBuilder struct {
	BaseConfig BaseConfig
	flags      *pflag.FlagSet

	Logger      zerolog.Logger
	Me          chain.NodeID
	DB          *badger.DB
	Storage     storage.All
	State       *statebadger.State
	Distributor *state.Distributor
	Network     network.Network

	EngineMetrics    module.EngineMetrics
	ForestMetrics    module.ForestMetrics
	ResponderMetrics module.ResponderMetrics
	ChainSyncMetrics module.ChainSyncMetrics

	components  []namedComponentFn
	doneObjects []namedDoneObject
	sig         chan os.Signal
}

func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{}
}

// BindFlags registers the base configuration on the given flag set, usually
// the one of the cobra run command.
func (nb *NodeBuilder) BindFlags(flags *pflag.FlagSet) {
	nb.flags = flags
	flags.StringVarP(&nb.BaseConfig.NodeID, "nodeid", "n", "", "hex identity of our node; a random one is generated when empty")
	flags.StringVarP(&nb.BaseConfig.DataDir, "datadir", "d", "data", "directory to store the chain state")
	flags.StringVarP(&nb.BaseConfig.Level, "loglevel", "l", "info", "level for logging output")
	flags.BoolVar(&nb.BaseConfig.Console, "console", false, "use a human-readable console log instead of JSON")
	flags.DurationVarP(&nb.BaseConfig.Timeout, "timeout", "t", time.Minute, "how long to wait for a component to start or stop")
	flags.StringVar(&nb.BaseConfig.ConfigFile, "config", "", "path to an optional config file")
	flags.StringVar(&nb.BaseConfig.GenesisFile, "genesis", "", "path to the genesis file; the development genesis is used when empty")
	flags.Uint64Var(&nb.BaseConfig.SessionPeriod, "session-period", 900, "number of blocks in one session")
	flags.DurationVar(&nb.BaseConfig.BroadcastInterval, "broadcast-interval", 8*time.Second, "interval between state broadcasts, zero disables them")
	flags.DurationVar(&nb.BaseConfig.ScanInterval, "scan-interval", 2*time.Second, "interval between scans for blocks to request")
	flags.UintVar(&nb.BaseConfig.MetricsPort, "metrics-port", 8080, "port for the metrics server")
	flags.BoolVar(&nb.BaseConfig.Profiler, "profiler-enabled", false, "expose the pprof endpoints on the metrics port")
}

// Component registers a component to be started in registration order and
// stopped in reverse order. The constructor runs after the shared
// infrastructure is initialized.
func (nb *NodeBuilder) Component(name string, f func(*NodeBuilder) (module.ReadyDoneAware, error)) *NodeBuilder {
	nb.components = append(nb.components, namedComponentFn{fn: f, name: name})
	return nb
}

// MustNot returns a fatal log event when err is set and nil otherwise, so
// init code can write nb.MustNot(err).Msg("context").
func (nb *NodeBuilder) MustNot(err error) *zerolog.Event {
	if err != nil {
		return nb.Logger.Fatal().Err(err)
	}
	return nil
}

// loadConfig overlays the environment and the optional config file onto the
// parsed flags and validates the result. Runs before the logger exists, so
// errors are returned rather than logged.
func (nb *NodeBuilder) loadConfig() error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if nb.BaseConfig.ConfigFile != "" {
		v.SetConfigFile(nb.BaseConfig.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file %s: %w", nb.BaseConfig.ConfigFile, err)
		}
	}

	var bindErr error
	nb.flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		err := nb.flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		if err != nil && bindErr == nil {
			bindErr = fmt.Errorf("could not apply %s from environment or config file: %w", f.Name, err)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	err := validator.New().Struct(nb.BaseConfig)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (nb *NodeBuilder) initLogger() {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	var writer zerolog.Logger
	if nb.BaseConfig.Console {
		writer = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		writer = zerolog.New(os.Stderr)
	}
	log := writer.With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(strings.ToLower(nb.BaseConfig.Level))
	if err != nil {
		log.Fatal().Err(err).Str("level", nb.BaseConfig.Level).Msg("invalid log level")
	}

	nb.Logger = log.Level(lvl)
}

func (nb *NodeBuilder) initIdentity() {
	if nb.BaseConfig.NodeID == "" {
		_, err := crand.Read(nb.Me[:])
		nb.MustNot(err).Msg("could not generate a node id")
		nb.Logger.Warn().Str("node_id", nb.Me.String()).Msg("no node id configured, generated a throwaway identity")
	} else {
		raw, err := hex.DecodeString(nb.BaseConfig.NodeID)
		nb.MustNot(err).Msg("could not decode node id")
		copy(nb.Me[:], raw)
	}
	nb.Logger = nb.Logger.With().Str("node_id", nb.Me.String()).Logger()
}

func (nb *NodeBuilder) initMetrics() {
	nb.EngineMetrics = metrics.NewEngineCollector()
	nb.ForestMetrics = metrics.NewForestCollector()
	nb.ResponderMetrics = metrics.NewResponderCollector()
	nb.ChainSyncMetrics = metrics.NewChainSyncCollector()
}

func (nb *NodeBuilder) initDatabase() {
	datadir := filepath.Join(nb.BaseConfig.DataDir, "chain")
	err := os.MkdirAll(datadir, 0700)
	nb.MustNot(err).Str("dir", datadir).Msg("could not create data directory")

	opts := badger.
		DefaultOptions(datadir).
		WithKeepL0InMemory(true).
		WithLogger(nil)

	// a previous process may still be releasing the directory lock, so the
	// open is retried with a fibonacci backoff before giving up
	backoff := retry.WithMaxRetries(8, retry.NewFibonacci(100*time.Millisecond))

	var db *badger.DB
	err = retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		var openErr error
		db, openErr = badger.Open(opts)
		if openErr != nil {
			nb.Logger.Warn().Err(openErr).Msg("could not open database, retrying")
			return retry.RetryableError(openErr)
		}
		return nil
	})
	nb.MustNot(err).Str("dir", datadir).Msg("could not open database")
	nb.DB = db
}

func (nb *NodeBuilder) initStorage() {
	cacheMetrics := metrics.NewCacheCollector()
	headers := storagebadger.NewHeaders(cacheMetrics, nb.DB)
	payloads := storagebadger.NewPayloads(cacheMetrics, nb.DB)
	blocks := storagebadger.NewBlocks(nb.DB, headers, payloads)
	justifications := storagebadger.NewJustifications(cacheMetrics, nb.DB)

	nb.Storage = storage.All{
		Headers:        headers,
		Blocks:         blocks,
		Justifications: justifications,
	}
}

func (nb *NodeBuilder) initState() {
	nb.Distributor = state.NewDistributor()

	chainState, err := statebadger.OpenState(nb.DB,
		nb.Storage.Headers, nb.Storage.Blocks, nb.Storage.Justifications, nb.Distributor)
	if errors.Is(err, storage.ErrNotFound) {
		root, rootJust := nb.loadGenesis()
		nb.Logger.Info().Str("root", root.ID().String()).Msg("bootstrapping fresh database")
		err = statebadger.Bootstrap(nb.DB, nb.Storage.Blocks, nb.Storage.Justifications, root, rootJust)
		nb.MustNot(err).Msg("could not bootstrap chain state")
		chainState, err = statebadger.OpenState(nb.DB,
			nb.Storage.Headers, nb.Storage.Blocks, nb.Storage.Justifications, nb.Distributor)
	}
	nb.MustNot(err).Msg("could not open chain state")
	nb.State = chainState

	top, err := chainState.TopFinalized()
	nb.MustNot(err).Msg("could not read top finalized block")
	nb.Logger.Info().
		Str("block_id", top.ID().String()).
		Msg("chain state opened")
}

func (nb *NodeBuilder) loadGenesis() (*chain.Block, chain.Justification) {
	if nb.BaseConfig.GenesisFile == "" {
		nb.Logger.Warn().Msg("no genesis file configured, using the development genesis")
		return devGenesis()
	}

	data, err := os.ReadFile(nb.BaseConfig.GenesisFile)
	nb.MustNot(err).Str("path", nb.BaseConfig.GenesisFile).Msg("could not read genesis file")

	var gen genesisFile
	err = json.Unmarshal(data, &gen)
	nb.MustNot(err).Msg("could not parse genesis file")
	err = validator.New().Struct(gen)
	nb.MustNot(err).Msg("invalid genesis file")

	header := &chain.Header{Number: gen.Number}
	header.Hash, err = chain.HashFromHex(gen.Hash)
	nb.MustNot(err).Msg("invalid genesis hash")
	if gen.ParentHash != "" {
		header.ParentHash, err = chain.HashFromHex(gen.ParentHash)
		nb.MustNot(err).Msg("invalid genesis parent hash")
	}
	proof, err := hex.DecodeString(gen.Proof)
	nb.MustNot(err).Msg("invalid genesis proof")

	return &chain.Block{Header: header}, chain.NewJustification(header, proof)
}

// devGenesis returns the deterministic development chain root, shared by all
// nodes started without a genesis file.
func devGenesis() (*chain.Block, chain.Justification) {
	hash := sha256.Sum256([]byte("alephsync dev genesis"))
	header := &chain.Header{
		Hash:       chain.Hash(hash),
		Number:     0,
		ParentHash: chain.ZeroHash,
	}
	return &chain.Block{Header: header}, chain.NewJustification(header, []byte("dev"))
}

func (nb *NodeBuilder) initNetwork() {
	// single-process hub; a production transport implementing
	// network.Network plugs in here
	hub := stub.NewHub()
	nb.Network = stub.NewNetwork(hub, nb.Me, cborcodec.NewCodec())
}

func (nb *NodeBuilder) handleReady(v namedComponentFn) {
	component, err := v.fn(nb)
	nb.MustNot(err).Msg("could not create " + v.name)

	select {
	case <-component.Ready():
		nb.Logger.Info().Msg(v.name + " ready")
	case <-time.After(nb.BaseConfig.Timeout):
		nb.Logger.Fatal().Msg("could not start " + v.name)
	case <-nb.sig:
		nb.Logger.Warn().Msg(v.name + " start aborted")
		os.Exit(1)
	}

	nb.doneObjects = append(nb.doneObjects, namedDoneObject{ob: component, name: v.name})
}

func (nb *NodeBuilder) handleDone(v namedDoneObject) {
	nb.Logger.Info().Msg("stopping " + v.name)

	select {
	case <-v.ob.Done():
		nb.Logger.Info().Msg(v.name + " shutdown complete")
	case <-time.After(nb.BaseConfig.Timeout):
		nb.Logger.Fatal().Msg("could not stop " + v.name)
	case <-nb.sig:
		nb.Logger.Warn().Msg(v.name + " stop aborted")
		os.Exit(1)
	}
}

// Run initializes the node and blocks until a termination signal arrives,
// then stops the components in reverse start order and closes the database.
func (nb *NodeBuilder) Run() {
	nb.sig = make(chan os.Signal, 1)
	signal.Notify(nb.sig, os.Interrupt, syscall.SIGTERM)

	err := nb.loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load configuration: %v\n", err)
		os.Exit(1)
	}

	nb.initLogger()
	nb.initIdentity()
	nb.initMetrics()
	nb.initDatabase()
	nb.initStorage()
	nb.initState()
	nb.initNetwork()

	for _, f := range nb.components {
		nb.handleReady(f)
	}

	nb.Logger.Info().Msg("node startup complete")

	<-nb.sig

	nb.Logger.Info().Msg("node shutting down")

	for i := len(nb.doneObjects) - 1; i >= 0; i-- {
		nb.handleDone(nb.doneObjects[i])
	}

	err = nb.DB.Close()
	if err != nil {
		nb.Logger.Error().Err(err).Msg("could not close database")
	}

	nb.Logger.Info().Msg("node shutdown complete")
}
