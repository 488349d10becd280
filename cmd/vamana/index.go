package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vamana"
	"github.com/hupe1980/vamana/filter"
	"github.com/hupe1980/vamana/vectors"
)

func (a *app) prebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prebuild",
		Short: "Reserve the graph region",
		Long: `Reserve the fixed-size graph region described by the index section of
the config. Fails if the region already exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := a.openStorage()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := vamana.Prebuild(cmd.Context(), st, a.cfg.Index, a.indexOptions()...); err != nil {
				return err
			}
			region, err := st.Region(a.cfg.Index.RegionName)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reserved %s: %s (%s, capacity %d, R %d)\n",
				a.cfg.Index.RegionName, humanize.IBytes(uint64(region.Size())), region.Mode(),
				a.cfg.Index.Capacity, a.cfg.Index.R)
			return nil
		},
	}
}

func (a *app) buildCmd() *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the graph over a .fvecs dataset",
		Long: `Build the graph into the reserved region. The region is prebuilt first
if it does not exist yet.

Examples:
  vamana build --data sift_base.fvecs
  vamana -c prod.yaml build --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if dataPath == "" {
				dataPath = a.cfg.Data.Path
			}
			data, err := a.loadDataset(dataPath)
			if err != nil {
				return err
			}
			dist, err := a.distance()
			if err != nil {
				return err
			}

			st, err := a.openStorage()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := a.ensureReserved(ctx, st); err != nil {
				return err
			}

			start := time.Now()
			progress := progressPrinter(cmd.ErrOrStderr(), a.cfg.Index.Passes)
			idx, err := vamana.Build(ctx, st, data, dist, a.cfg.Index, a.indexOptions(vamana.WithProgress(progress))...)
			if err != nil {
				return err
			}
			defer idx.Close()

			s := idx.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "built %d nodes (dim %d) in %s: entry %d, avg degree %.2f, max degree %d\n",
				idx.Len(), idx.Dim(), time.Since(start).Round(time.Millisecond), idx.EntryPoint(), s.AvgDegree, s.MaxDegree)
			return nil
		},
	}

	cmd.Flags().StringVar(&dataPath, "data", "", ".fvecs dataset (overrides data.path)")
	return cmd
}

// progressPrinter reports each pass in tenths.
func progressPrinter(w io.Writer, passes int) func(pass, done, total int) {
	lastPass, lastTenth := -1, -1
	return func(pass, done, total int) {
		if total == 0 {
			return
		}
		tenth := done * 10 / total
		if pass == lastPass && tenth == lastTenth {
			return
		}
		lastPass, lastTenth = pass, tenth
		fmt.Fprintf(w, "pass %d/%d: %d/%d\n", pass+1, passes, done, total)
	}
}

type searchHit struct {
	ID       uint32  `json:"id"`
	Distance float32 `json:"distance"`
}

type searchOutput struct {
	Query   int         `json:"query"`
	Results []searchHit `json:"results"`
}

func (a *app) searchCmd() *cobra.Command {
	var (
		dataPath  string
		queryPath string
		vecs      []string
		k         int
		allow     []uint
		minID     int64
		maxID     int64
		asJSON    bool
		verifyCRC bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Query a built graph",
		Long: `Load the built graph and run top-k queries.

Queries come from --vector (comma separated, repeatable) or from a .fvecs
file given with --queries. --allow and --min-id/--max-id restrict results.

Examples:
  vamana search --vector 0.1,0.2,0.3 -k 5
  vamana search --queries sift_query.fvecs -k 10 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			queries, err := parseQueries(vecs, queryPath)
			if err != nil {
				return err
			}
			if len(queries) == 0 {
				return errors.New("no queries: pass --vector or --queries")
			}

			if dataPath == "" {
				dataPath = a.cfg.Data.Path
			}
			data, err := a.loadDataset(dataPath)
			if err != nil {
				return err
			}
			dist, err := a.distance()
			if err != nil {
				return err
			}

			st, err := a.openStorage()
			if err != nil {
				return err
			}
			defer st.Close()

			var extra []vamana.Option
			if verifyCRC {
				extra = append(extra, vamana.WithVerifyChecksum())
			}
			idx, err := vamana.Load(ctx, st, data, dist, a.cfg.Index, a.indexOptions(extra...)...)
			if err != nil {
				return err
			}
			defer idx.Close()

			pred := buildFilter(allow, minID, maxID)
			results, err := idx.SearchBatch(ctx, queries, k, pred)
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), results, asJSON)
		},
	}

	f := cmd.Flags()
	f.StringVar(&dataPath, "data", "", ".fvecs dataset (overrides data.path)")
	f.StringVar(&queryPath, "queries", "", ".fvecs file of queries")
	f.StringArrayVar(&vecs, "vector", nil, "query vector, comma separated")
	f.IntVarP(&k, "top", "k", 10, "number of neighbors")
	f.UintSliceVar(&allow, "allow", nil, "only return these ids")
	f.Int64Var(&minID, "min-id", -1, "smallest id to return")
	f.Int64Var(&maxID, "max-id", -1, "return only ids below this")
	f.BoolVar(&asJSON, "json", false, "print JSON")
	f.BoolVar(&verifyCRC, "verify", false, "verify the region checksum on load")
	return cmd
}

func parseQueries(vecs []string, path string) ([][]float32, error) {
	var out [][]float32
	for _, s := range vecs {
		v, err := parseVector(s)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if path == "" {
		return out, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	qs, err := vectors.ReadFvecs(f, 0)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	for i := range qs.Len() {
		v, err := qs.Vector(uint32(i))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseVector(s string) ([]float32, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty vector %q", s)
	}
	v := make([]float32, len(fields))
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("vector %q: %w", s, err)
		}
		v[i] = float32(x)
	}
	return v, nil
}

// buildFilter returns nil when no restriction is set.
func buildFilter(allow []uint, minID, maxID int64) filter.Func {
	var fns []filter.Func
	if len(allow) > 0 {
		ids := make([]uint32, len(allow))
		for i, id := range allow {
			ids[i] = uint32(id)
		}
		fns = append(fns, filter.AllowIDs(ids...))
	}
	if minID >= 0 || maxID >= 0 {
		lo, hi := uint32(0), ^uint32(0)
		if minID >= 0 {
			lo = uint32(minID)
		}
		if maxID >= 0 {
			hi = uint32(maxID)
		}
		fns = append(fns, filter.Range(lo, hi))
	}
	if len(fns) == 0 {
		return nil
	}
	return filter.And(fns...)
}

func printResults(w io.Writer, results [][]vamana.Result, asJSON bool) error {
	if asJSON {
		out := make([]searchOutput, len(results))
		for i, res := range results {
			hits := make([]searchHit, len(res))
			for j, r := range res {
				hits[j] = searchHit{ID: r.ID, Distance: r.Distance}
			}
			out[i] = searchOutput{Query: i, Results: hits}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUERY\tRANK\tID\tDISTANCE")
	for q, res := range results {
		for rank, r := range res {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%g\n", q, rank+1, r.ID, r.Distance)
		}
	}
	return tw.Flush()
}
