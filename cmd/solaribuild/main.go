// Command solaribuild drives the build pipeline (C1-C6) end to end:
// parse one or more GTFS zips, induce patterns, assemble a CSR
// timetable, concatenate multi-feed builds, compute the pedestrian
// transfer graph, and write the result to a timetable directory
// (spec.md §6). It is not a query server — that surface stays
// external, per spec.md §2 and SPEC_FULL.md §A "CLI surface".
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ellenhp/solari-go/compiler"
	"github.com/ellenhp/solari-go/feed/parse"
	"github.com/ellenhp/solari-go/feed/storage"
	"github.com/ellenhp/solari-go/mmap"
	"github.com/ellenhp/solari-go/timetable"
	"github.com/ellenhp/solari-go/transfergraph"
)

var rootCmd = &cobra.Command{
	Use:          "solaribuild",
	Short:        "Solari timetable build pipeline",
	Long:         "Compiles GTFS feeds plus a pedestrian graph into a queryable timetable directory",
	SilenceUsage: true,
	RunE:         runBuild,
}

var (
	basePath      string
	gtfsPaths     []string
	valhallaTiles string
	numThreads    int
	concatOnly    bool
	startDate     string
	numDays       int
	postgresDSN   string
)

func init() {
	rootCmd.Flags().StringVar(&basePath, "base-path", "", "output timetable directory (required)")
	// --gtfs-path is reinterpreted by --concat-only: normally a GTFS zip
	// archive, but under --concat-only a pre-compiled timetable
	// directory (see concatenateCompiledFeeds).
	rootCmd.Flags().StringSliceVar(&gtfsPaths, "gtfs-path", nil, "GTFS zip archive (repeatable); under --concat-only, a compiled timetable directory instead")
	rootCmd.Flags().StringVar(&valhallaTiles, "valhalla-tiles", "", "road-network tile directory for the pedestrian graph")
	rootCmd.Flags().IntVarP(&numThreads, "num-threads", "n", 0, "worker count for feed and transfer-graph parallelism (0: no limit)")
	rootCmd.Flags().BoolVar(&concatOnly, "concat-only", false, "skip C1-C4 and re-concatenate a directory of already-compiled per-feed timetables")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "calendar window start, YYYYMMDD (required unless --concat-only)")
	rootCmd.Flags().IntVar(&numDays, "num-days", 90, "calendar window length in days")
	// Staging storage defaults to the embedded sqlite backend (no setup
	// required); --postgres-dsn switches it to PSQLStorage, for builds
	// over a single very large feed where Postgres's COPY support keeps
	// trip/stop_time ingestion fast (see feed/storage/postgres.go).
	rootCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "use Postgres instead of the embedded sqlite store for feed staging (connection string)")
	rootCmd.MarkFlagRequired("base-path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, args []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	var tt *timetable.Timetable
	if concatOnly {
		tt, err = concatenateCompiledFeeds(gtfsPaths, logger)
	} else {
		tt, err = buildFromGTFS(logger)
	}
	if err != nil {
		return err
	}

	graph, err := buildPedestrianGraph(valhallaTiles, logger)
	if err != nil {
		return fmt.Errorf("building pedestrian graph: %w", err)
	}

	tgCfg := transfergraph.DefaultConfig()
	tgCfg.NumWorkers = numThreads
	transfers, err := transfergraph.Build(tt.Stops, graph, tgCfg)
	if err != nil {
		return fmt.Errorf("building transfer graph: %w", err)
	}
	transfergraph.Attach(tt, transfers)
	transfergraph.PopulateSphereCoords(tt)

	if err := mmap.Write(basePath, tt); err != nil {
		return fmt.Errorf("writing timetable to %s: %w", basePath, err)
	}

	ch := transfergraph.BuildCH(graph)
	chPath := filepath.Join(basePath, "contracted_graph.bin")
	if err := transfergraph.WriteCH(chPath, ch); err != nil {
		return fmt.Errorf("writing %s: %w", chPath, err)
	}

	metaPath := filepath.Join(basePath, "graph_metadata.db")
	meta, err := transfergraph.OpenMetadataStore(metaPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", metaPath, err)
	}
	defer meta.Close()
	if err := meta.WriteConfig(tgCfg); err != nil {
		return fmt.Errorf("writing %s: %w", metaPath, err)
	}

	logger.Info("build complete",
		zap.String("base_path", basePath),
		zap.Int("stops", len(tt.Stops)),
		zap.Int("patterns", len(tt.Patterns)),
		zap.Int("trips", len(tt.Trips)))
	return nil
}

// openStagingStorage opens the C1 scratch store feeds are parsed into
// before pattern induction. sqlite (on disk, so a later GetReader can
// find what GetWriter staged -- see feed/storage/sqlite.go) is the
// default; --postgres-dsn switches to PSQLStorage instead.
func openStagingStorage() (storage.Storage, func(), error) {
	if postgresDSN != "" {
		store, err := storage.NewPSQLStorage(postgresDSN, true)
		if err != nil {
			return nil, nil, fmt.Errorf("opening postgres scratch storage: %w", err)
		}
		return store, func() { store.Close() }, nil
	}

	scratchDir, err := os.MkdirTemp("", "solaribuild-stage-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(storage.SQLiteConfig{OnDisk: true, Directory: scratchDir})
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, nil, fmt.Errorf("opening scratch storage: %w", err)
	}
	return store, func() { os.RemoveAll(scratchDir) }, nil
}

// buildFromGTFS parses every --gtfs-path into the staging store, one
// feed after another, then runs compiler.Compile, which builds the
// per-feed timetables in parallel and concatenates them in
// canonical-filename order
// (spec.md §9: "sorted by a canonical key ... before merge").
func buildFromGTFS(logger *zap.Logger) (*timetable.Timetable, error) {
	if startDate == "" {
		return nil, fmt.Errorf("--start-date is required unless --concat-only")
	}
	if len(gtfsPaths) == 0 {
		return nil, fmt.Errorf("at least one --gtfs-path is required unless --concat-only")
	}

	store, closeStore, err := openStagingStorage()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	feeds := make([]compiler.Feed, len(gtfsPaths))
	for i, path := range gtfsPaths {
		buf, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		// GetWriter/GetReader key staged feeds by a hash that also
		// doubles as a filename on disk; the GTFS path itself may
		// contain separators, so stage under a plain positional key.
		hash := fmt.Sprintf("feed%d", i)

		writer, err := store.GetWriter(hash)
		if err != nil {
			return nil, fmt.Errorf("opening feed writer for %s: %w", path, err)
		}
		if _, err := parse.ParseStatic(writer, buf); err != nil {
			writer.Close()
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("closing staged feed for %s: %w", path, err)
		}

		reader, err := store.GetReader(hash)
		if err != nil {
			return nil, fmt.Errorf("opening feed reader for %s: %w", path, err)
		}
		feeds[i] = compiler.Feed{SourcePath: path, Reader: reader}
	}

	logger.Info("build order", zap.Strings("feeds", compiler.SortedFeedNames(feeds)))

	cfg := compiler.Config{CalendarStart: startDate, CalendarDays: numDays, NumWorkers: numThreads}
	return compiler.Compile(feeds, cfg, logger)
}

// concatenateCompiledFeeds implements --concat-only (SPEC_FULL.md §D.2):
// re-merge a directory of already-compiled per-feed timetables without
// re-running C1-C4. Each --gtfs-path is reinterpreted as a compiled
// timetable directory rather than a GTFS zip.
func concatenateCompiledFeeds(dirs []string, logger *zap.Logger) (*timetable.Timetable, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("--concat-only requires at least one --gtfs-path pointing at a compiled timetable directory")
	}

	names := append([]string(nil), dirs...)
	logger.Info("concat-only build order", zap.Strings("feeds", names))

	tables := make([]*timetable.Timetable, len(dirs))
	for i, dir := range dirs {
		opened, err := mmap.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("opening compiled feed %s: %w", dir, err)
		}
		defer opened.Close()
		tables[i] = timetableFromMmap(opened)
	}
	return compiler.Concatenate(tables, names)
}

// timetableFromMmap decodes every record out of an opened mmap
// timetable into the in-memory shape Concatenate expects. --concat-only
// builds are rare enough (re-merging an already-compiled feed) that
// paying the full decode cost once is preferable to giving
// compiler.Concatenate a second, mmap-backed code path.
func timetableFromMmap(t *mmap.Timetable) *timetable.Timetable {
	tt := &timetable.Timetable{
		StopIndex:     make(map[string]int32, t.NumStops()),
		CalendarStart: t.CalendarStart(),
		CalendarDays:  t.CalendarDays(),
	}
	bytesPerTrip := tt.BytesPerTrip()

	for i := 0; i < t.NumStops(); i++ {
		s := t.Stop(int32(i))
		tt.Stops = append(tt.Stops, s)
		tt.StopIndex[s.ID] = int32(i)
	}
	for p := 0; p < t.NumPatterns(); p++ {
		tt.Patterns = append(tt.Patterns, t.Pattern(int32(p)))
		tt.PatternStops = append(tt.PatternStops, t.PatternStopIDs(int32(p))...)
	}
	for i := 0; i < t.NumTrips(); i++ {
		trip := t.Trip(int32(i))
		tt.Trips = append(tt.Trips, trip)
		tt.StopTimes = append(tt.StopTimes, t.TripStopTimes(int32(i))...)

		days := make([]byte, bytesPerTrip)
		for d := 0; d < t.CalendarDays(); d++ {
			if t.ActiveOnDay(int32(i), d) {
				days[d/8] |= 1 << uint(d%8)
			}
		}
		tt.Calendar = append(tt.Calendar, timetable.TripCalendar{Days: days})
	}
	for s := 0; s < t.NumStops(); s++ {
		tt.Transfers = append(tt.Transfers, t.Transfers(int32(s)))
	}
	return tt
}

// buildPedestrianGraph loads the road-network tile directory into a
// pedestrian Graph. spec.md §2 and §6 place the concrete tile reader
// out of scope ("given a tile directory, produce a weighted pedestrian
// graph" is the whole contract); without --valhalla-tiles, or with no
// TileReader wired in, the build proceeds with an empty graph and a
// warning, producing a timetable with no precomputed transfers rather
// than failing outright.
func buildPedestrianGraph(tileDir string, logger *zap.Logger) (*transfergraph.Graph, error) {
	if tileDir == "" {
		logger.Warn("no --valhalla-tiles given; building with an empty pedestrian graph (no transfers)")
		return transfergraph.NewGraph(), nil
	}
	logger.Warn("tile reading is an external collaborator (spec.md §2); "+
		"no concrete TileReader is wired into this build, so --valhalla-tiles is ignored",
		zap.String("valhalla_tiles", tileDir))
	return transfergraph.NewGraph(), nil
}
