// Package postgres reads protein annotations from the PlaqueMS relational
// database.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"github.com/NikolaosSamperis/PlaqueMS-project/application/ports"
	"github.com/NikolaosSamperis/PlaqueMS-project/domain/network"
	pkgerrors "github.com/NikolaosSamperis/PlaqueMS-project/pkg/errors"
)

// Querier is the subset of *pgxpool.Pool used by ProteinSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Config holds connection settings.
type Config struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, pkgerrors.NewDataSourceUnavailableError(pkgerrors.SourceRelational, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, pkgerrors.NewDataSourceUnavailableError(pkgerrors.SourceRelational, err)
	}
	return pool, nil
}

const selectProteins = `
SELECT p.protein_id,
       p.uniprot_accession_id,
       p.gene_name,
       d.log_fc,
       d.p_value,
       d.adj_p_value,
       d.ave_expr,
       d.t_statistic,
       d.b_statistic,
       d.ci_low,
       d.ci_high
FROM differential_expression d
JOIN proteins p ON p.protein_id = d.protein_id
WHERE lower(d.cohort) = $1
  AND lower(d.tissue_region) = $2
  AND lower(d.proteome_extract) = $3
  AND ($4::text[] IS NULL
       OR upper(p.gene_name) = ANY($4)
       OR upper(p.uniprot_accession_id) = ANY($4))
ORDER BY p.protein_id`

// ProteinSource implements ports.ProteinSource over the proteins and
// differential_expression tables.
type ProteinSource struct {
	db     Querier
	logger *zap.Logger
}

// NewProteinSource creates a new protein source
func NewProteinSource(db Querier, logger *zap.Logger) *ProteinSource {
	return &ProteinSource{db: db, logger: logger}
}

// FetchProteins returns one node per protein with a differential expression
// row for the selection.
func (s *ProteinSource) FetchProteins(ctx context.Context, sel network.Selection) ([]network.Node, error) {
	rows, err := s.db.Query(ctx, selectProteins, queryArgs(sel)...)
	if err != nil {
		return nil, fmt.Errorf("query proteins: %w", err)
	}
	defer rows.Close()

	var nodes []network.Node
	for rows.Next() {
		var r proteinRow
		if err := rows.Scan(
			&r.ProteinID, &r.Accession, &r.GeneName,
			&r.LogFC, &r.PValue, &r.AdjPValue, &r.AveExpr,
			&r.TStatistic, &r.BStatistic, &r.CILow, &r.CIHigh,
		); err != nil {
			return nil, fmt.Errorf("scan protein row: %w", err)
		}
		node, ok := r.toNode()
		if !ok {
			s.logger.Debug("Skipping protein without identifier", zap.String("protein_id", r.ProteinID))
			continue
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read protein rows: %w", err)
	}

	s.logger.Debug("Fetched proteins",
		zap.String("selection_key", sel.Key()),
		zap.Int("count", len(nodes)),
	)
	return nodes, nil
}

// queryArgs binds the selection. A nil protein list disables the filter.
func queryArgs(sel network.Selection) []interface{} {
	var proteins []string
	if sel.HasProteinFilter() {
		proteins = sel.ProteinIDs
	}
	return []interface{}{
		strings.ToLower(sel.Cohort),
		strings.ToLower(sel.TissueRegion),
		strings.ToLower(sel.ProteomeExtract),
		proteins,
	}
}

// proteinRow is one result row. Statistics are nullable.
type proteinRow struct {
	ProteinID  string
	Accession  string
	GeneName   string
	LogFC      *float64
	PValue     *float64
	AdjPValue  *float64
	AveExpr    *float64
	TStatistic *float64
	BStatistic *float64
	CILow      *float64
	CIHigh     *float64
}

// toNode keys the protein by gene name, which is the vocabulary shared with
// the graph store, falling back to the accession.
func (r proteinRow) toNode() (network.Node, bool) {
	id := strings.TrimSpace(r.GeneName)
	if id == "" {
		id = strings.TrimSpace(r.Accession)
	}
	if id == "" {
		return network.Node{}, false
	}

	attrs := network.Attributes{}
	set := func(name string, v *float64) {
		if v != nil {
			attrs[name] = network.Number(*v)
		}
	}
	set(network.AttrFoldChange, r.LogFC)
	set(network.AttrPValue, r.PValue)
	set(network.AttrAdjPValue, r.AdjPValue)
	set(network.AttrAveExpr, r.AveExpr)
	set(network.AttrTStatistic, r.TStatistic)
	set(network.AttrBStatistic, r.BStatistic)
	set(network.AttrCILow, r.CILow)
	set(network.AttrCIHigh, r.CIHigh)

	return network.NewNode(id, id, network.SourceRelational, attrs), true
}

var _ ports.ProteinSource = (*ProteinSource)(nil)
