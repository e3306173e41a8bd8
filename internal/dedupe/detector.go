package dedupe

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/planilimpa/planilimpa/internal/enrich"
	"github.com/planilimpa/planilimpa/internal/table"
)

// DefaultThreshold is the minimum fuzzy similarity for two records to be
// considered probable duplicates.
const DefaultThreshold = 0.8

// ctxCheckInterval is how many pair comparisons run between cancellation
// checks inside a fuzzy bucket.
const ctxCheckInterval = 128

// Result is one detected duplicate group. JSON names follow the report
// contract consumed by the export layer.
type Result struct {
	// Tipo labels the match basis, e.g. "Nome idêntico" or "Nome similar".
	Tipo string `json:"tipo"`
	// Valor is the representative value shown for the group.
	Valor string `json:"valor"`
	// Linhas are the member row indices in the analyzed table, ascending.
	Linhas []int `json:"linhas"`
	// Similaridade is in [0,1]; 1.0 means exact match. Fuzzy groups carry
	// the minimum pairwise score (the weakest link).
	Similaridade float64 `json:"similaridade"`
	// Arquivos is the set of distinct origin files touched by the group,
	// present when the table was produced by a batch merge.
	Arquivos []string `json:"arquivos,omitempty"`
	// CrossFile is true when the group spans more than one origin file.
	CrossFile bool `json:"entreArquivos"`
}

// Report is the outcome of one detection run. Partial is true when a
// cancelled fuzzy phase returned only the groups completed so far; exact
// groups are always complete.
type Report struct {
	Groups  []Result `json:"grupos"`
	Partial bool     `json:"parcial"`
}

// Options tunes a detection run. The zero value uses the default threshold,
// header-heuristic identity columns, and one worker per CPU.
type Options struct {
	// Threshold is the minimum fuzzy similarity; 0 means DefaultThreshold.
	Threshold float64
	// NameColumns overrides the name-like identity columns.
	NameColumns []string
	// CodeColumns overrides the code/SKU-like identity columns.
	CodeColumns []string
	// Workers bounds the fuzzy-phase parallelism; 0 means NumCPU.
	Workers int
}

type basisKind int

const (
	basisName basisKind = iota
	basisCode
)

type basis struct {
	column string
	kind   basisKind
}

// Detect finds probable duplicate groups in the table.
//
// Phase one buckets rows by normalization key per identity column; buckets
// with two or more members become exact groups. Phase two compares the
// remaining name-basis rows pairwise within cheap pre-filter buckets (same
// first normalized token), in parallel, and unions pairs at or above the
// threshold into groups. Ordering is stable for identical input regardless
// of scheduling. Cancelling ctx degrades to a partial report, never an
// error.
func Detect(ctx context.Context, t *table.Table, policies enrich.PolicyMap, opts Options) (*Report, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	report := &Report{Groups: []Result{}}

	for _, bs := range identityBases(t, policies, opts) {
		keys := make([]string, t.Len())
		for r := range keys {
			keys[r] = NormalizeKey(t.Value(r, bs.column).Text())
		}

		grouped := exactPhase(t, bs, keys, report)

		if bs.kind != basisName {
			continue
		}
		fuzzyPhase(ctx, t, bs, keys, grouped, threshold, workers, report)
	}

	return report, nil
}

// exactPhase groups rows sharing a normalization key and returns which rows
// were claimed, so the fuzzy phase skips them.
func exactPhase(t *table.Table, bs basis, keys []string, report *Report) []bool {
	buckets := make(map[string][]int)
	var order []string
	for r, k := range keys {
		if k == "" {
			// Rows missing the identity column are excluded, never an error.
			continue
		}
		if _, seen := buckets[k]; !seen {
			order = append(order, k)
		}
		buckets[k] = append(buckets[k], r)
	}

	grouped := make([]bool, len(keys))
	for _, k := range order {
		rows := buckets[k]
		if len(rows) < 2 {
			continue
		}
		for _, r := range rows {
			grouped[r] = true
		}
		res := Result{
			Tipo:         exactLabel(bs.kind),
			Valor:        strings.TrimSpace(t.Value(rows[0], bs.column).Text()),
			Linhas:       rows,
			Similaridade: 1.0,
		}
		attachOrigins(t, &res)
		report.Groups = append(report.Groups, res)
	}
	return grouped
}

type edge struct {
	a, b  int
	score float64
}

// fuzzyPhase compares ungrouped rows within pre-filter buckets, unions
// similar pairs, and appends one result per connected group.
func fuzzyPhase(ctx context.Context, t *table.Table, bs basis, keys []string, grouped []bool, threshold float64, workers int, report *Report) {
	prefilter := make(map[string][]int)
	var bucketOrder []string
	for r, k := range keys {
		if k == "" || grouped[r] {
			continue
		}
		tok := firstToken(k)
		if _, seen := prefilter[tok]; !seen {
			bucketOrder = append(bucketOrder, tok)
		}
		prefilter[tok] = append(prefilter[tok], r)
	}

	type bucketResult struct {
		edges    []edge
		complete bool
	}
	results := make([]bucketResult, len(bucketOrder))

	// Workers are partitioned by pre-filter bucket; each bucket's edges are
	// produced sequentially, and buckets are merged in a fixed order below,
	// so scheduling never changes the outcome.
	var g errgroup.Group
	g.SetLimit(workers)
	for bi, tok := range bucketOrder {
		rows := prefilter[tok]
		if len(rows) < 2 {
			results[bi] = bucketResult{complete: true}
			continue
		}
		bi, rows := bi, rows
		g.Go(func() error {
			var edges []edge
			pairs := 0
			for i := 0; i < len(rows); i++ {
				for j := i + 1; j < len(rows); j++ {
					if pairs%ctxCheckInterval == 0 && ctx.Err() != nil {
						results[bi] = bucketResult{}
						return nil
					}
					pairs++
					score := Similarity(keys[rows[i]], keys[rows[j]])
					if score >= threshold {
						edges = append(edges, edge{a: rows[i], b: rows[j], score: score})
					}
				}
			}
			results[bi] = bucketResult{edges: edges, complete: true}
			return nil
		})
	}
	_ = g.Wait()

	var edges []edge
	for _, br := range results {
		if !br.complete {
			report.Partial = true
			continue
		}
		edges = append(edges, br.edges...)
	}
	if len(edges) == 0 {
		return
	}

	uf := newUnionFind(len(keys))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	// Group bookkeeping keyed by final root: discovery position of the
	// first edge, minimum pairwise score, ascending members.
	discovery := make(map[int]int)
	minScore := make(map[int]float64)
	var rootOrder []int
	for pos, e := range edges {
		root := uf.find(e.a)
		if _, seen := discovery[root]; !seen {
			discovery[root] = pos
			minScore[root] = e.score
			rootOrder = append(rootOrder, root)
		} else if e.score < minScore[root] {
			minScore[root] = e.score
		}
	}
	members := make(map[int][]int)
	for r, k := range keys {
		if k == "" || grouped[r] {
			continue
		}
		root := uf.find(r)
		if _, ok := discovery[root]; ok {
			members[root] = append(members[root], r)
		}
	}

	for _, root := range rootOrder {
		rows := members[root]
		if len(rows) < 2 {
			continue
		}
		res := Result{
			Tipo:         fuzzyLabel(bs.kind),
			Valor:        strings.TrimSpace(t.Value(rows[0], bs.column).Text()),
			Linhas:       rows,
			Similaridade: minScore[root],
		}
		attachOrigins(t, &res)
		report.Groups = append(report.Groups, res)
	}
}

// attachOrigins derives cross-file attribution from the batch-merge
// metadata, without altering the grouping itself.
func attachOrigins(t *table.Table, res *Result) {
	if _, ok := t.ColumnIndex(table.ColSourceFile); !ok {
		return
	}
	seen := make(map[string]bool)
	for _, r := range res.Linhas {
		file := t.Value(r, table.ColSourceFile).Text()
		if file == "" || seen[file] {
			continue
		}
		seen[file] = true
		res.Arquivos = append(res.Arquivos, file)
	}
	res.CrossFile = len(res.Arquivos) > 1
}

func exactLabel(k basisKind) string {
	if k == basisCode {
		return "Código idêntico"
	}
	return "Nome idêntico"
}

func fuzzyLabel(k basisKind) string {
	if k == basisCode {
		return "Código similar"
	}
	return "Nome similar"
}

// identityBases picks the columns that define product identity: analyzed,
// unprotected columns whose headers look name-like or code-like, unless the
// caller names them explicitly. When nothing matches, the first analyzable
// column serves as the name basis so detection still has something to work
// with.
func identityBases(t *table.Table, policies enrich.PolicyMap, opts Options) []basis {
	var analyzable []string
	for _, col := range t.DataColumns() {
		pol := policies.Get(col)
		if pol.IsProtected || pol.Action != enrich.ActionAnalyze {
			continue
		}
		analyzable = append(analyzable, col)
	}

	isAnalyzable := func(col string) bool {
		for _, c := range analyzable {
			if c == col {
				return true
			}
		}
		return false
	}

	var bases []basis
	if len(opts.NameColumns) > 0 || len(opts.CodeColumns) > 0 {
		for _, col := range opts.NameColumns {
			if isAnalyzable(col) {
				bases = append(bases, basis{column: col, kind: basisName})
			}
		}
		for _, col := range opts.CodeColumns {
			if isAnalyzable(col) {
				bases = append(bases, basis{column: col, kind: basisCode})
			}
		}
		return bases
	}

	for _, col := range analyzable {
		if headerMatches(col, nameTokens) {
			bases = append(bases, basis{column: col, kind: basisName})
		}
	}
	for _, col := range analyzable {
		if headerMatches(col, codeTokens) {
			bases = append(bases, basis{column: col, kind: basisCode})
		}
	}
	if len(bases) == 0 && len(analyzable) > 0 {
		bases = append(bases, basis{column: analyzable[0], kind: basisName})
	}
	return bases
}

var nameTokens = map[string]bool{
	"nome": true, "name": true, "produto": true, "product": true,
	"descricao": true, "description": true, "titulo": true, "title": true,
	"item": true,
}

var codeTokens = map[string]bool{
	"codigo": true, "cod": true, "code": true, "sku": true, "ean": true,
	"gtin": true, "ref": true, "referencia": true, "barcode": true,
}

// headerMatches tokenizes the normalized header and checks membership, so
// "Nome do Produto" matches the name tokens and "Código EAN" the code ones.
func headerMatches(header string, tokens map[string]bool) bool {
	for _, tok := range strings.Fields(NormalizeKey(header)) {
		if tokens[tok] {
			return true
		}
	}
	return false
}
