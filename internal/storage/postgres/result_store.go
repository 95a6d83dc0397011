package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"regliq/internal/breakdown"
	"regliq/internal/liquidity"
	"regliq/internal/storage"
	"regliq/pkg/contracts/domain"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

var _ storage.ResultStore = (*ResultStore)(nil)

// Save stores the results of a submission atomically. Returns ErrDuplicateKey if they exist.
func (s *ResultStore) Save(ctx context.Context, r *storage.Results) error {
	if r == nil || r.SubmissionID == "" {
		return storage.ErrInvalidInput
	}

	reconciliation, err := json.Marshal(r.Reconciliation)
	if err != nil {
		return fmt.Errorf("encode reconciliation: %w", err)
	}
	asf, err := json.Marshal(r.NSFR.ASF)
	if err != nil {
		return fmt.Errorf("encode asf breakdown: %w", err)
	}
	rsf, err := json.Marshal(r.NSFR.RSF)
	if err != nil {
		return fmt.Errorf("encode rsf breakdown: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	lcr := r.LCR
	_, err = tx.Exec(ctx, `
		INSERT INTO lcr_results (
			submission_id, total_hqla, level1, level2a, level2b,
			outflows_retail, outflows_wholesale, outflows_secured, outflows_derivatives,
			outflows_other_contractual, outflows_other_contingent,
			total_cash_outflows, total_cash_inflows, capped_inflows, net_cash_outflows,
			lcr_ratio, is_compliant, reconciliation, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		r.SubmissionID, lcr.TotalHQLA, lcr.Level1, lcr.Level2A, lcr.Level2B,
		lcr.Outflows.Retail, lcr.Outflows.Wholesale, lcr.Outflows.Secured, lcr.Outflows.Derivatives,
		lcr.Outflows.OtherContractual, lcr.Outflows.OtherContingent,
		lcr.TotalCashOutflows, lcr.TotalCashInflows, lcr.CappedInflows, lcr.NetCashOutflows,
		lcr.LCRRatio, lcr.IsCompliant, reconciliation, r.CreatedAt,
	)
	if err != nil {
		switch {
		case isDuplicateKeyError(err):
			return storage.ErrDuplicateKey
		case isForeignKeyError(err):
			return fmt.Errorf("%w: unknown submission %s", storage.ErrInvalidInput, r.SubmissionID)
		}
		return fmt.Errorf("insert lcr result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO nsfr_results (
			submission_id, available_stable_funding, required_stable_funding,
			nsfr_ratio, is_compliant, asf_breakdown, rsf_breakdown
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		r.SubmissionID, r.NSFR.AvailableStableFunding, r.NSFR.RequiredStableFunding,
		r.NSFR.NSFRRatio, r.NSFR.IsCompliant, asf, rsf,
	)
	if err != nil {
		return fmt.Errorf("insert nsfr result: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range r.Breakdown.HQLA {
		batch.Queue(`
			INSERT INTO hqla_components (
				submission_id, seq, hqla_level, category, asset_class, total_amount, encumbered_amount,
				average_haircut, amount_after_haircut, liquidity_value_factor, uncapped_liquidity_value,
				cap_adjustment, liquidity_value, methodology, regulatory_reference, line_item_ids, record_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		`,
			r.SubmissionID, i, int(c.Level), string(c.Category), c.AssetClass, c.TotalAmount, c.EncumberedAmount,
			c.AverageHaircut, c.AmountAfterHaircut, c.LiquidityValueFactor, c.UncappedLiquidityValue,
			c.CapAdjustment, c.LiquidityValue, c.Methodology, c.RegulatoryReference, nonNil(c.LineItemIDs), c.RecordCount,
		)
	}
	for i, c := range r.Breakdown.Outflows {
		batch.Queue(`
			INSERT INTO outflow_components (
				submission_id, seq, outflow_category, category, product_type, counterparty_type, maturity_bucket,
				total_amount, effective_rate, computed_amount, methodology, regulatory_reference, line_item_ids, record_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`,
			r.SubmissionID, i, string(c.OutflowCategory), string(c.Category), c.ProductType,
			string(c.CounterpartyType), string(c.MaturityBucket), c.TotalAmount, c.EffectiveRate,
			c.ComputedAmount, c.Methodology, c.RegulatoryReference, nonNil(c.LineItemIDs), c.RecordCount,
		)
	}
	for i, c := range r.Breakdown.Inflows {
		batch.Queue(`
			INSERT INTO inflow_components (
				submission_id, seq, category, product_type, counterparty_type, maturity_bucket,
				total_amount, effective_rate, computed_amount, methodology, regulatory_reference, line_item_ids, record_count
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			r.SubmissionID, i, string(c.Category), c.ProductType, string(c.CounterpartyType),
			string(c.MaturityBucket), c.TotalAmount, c.EffectiveRate, c.ComputedAmount,
			c.Methodology, c.RegulatoryReference, nonNil(c.LineItemIDs), c.RecordCount,
		)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert components: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Get retrieves the results of a submission. Returns ErrNotFound if not exists.
func (s *ResultStore) Get(ctx context.Context, submissionID string) (*storage.Results, error) {
	r := storage.Results{SubmissionID: submissionID}
	lcr := &r.LCR
	var reconciliation []byte

	err := s.pool.QueryRow(ctx, `
		SELECT total_hqla, level1, level2a, level2b,
			outflows_retail, outflows_wholesale, outflows_secured, outflows_derivatives,
			outflows_other_contractual, outflows_other_contingent,
			total_cash_outflows, total_cash_inflows, capped_inflows, net_cash_outflows,
			lcr_ratio, is_compliant, reconciliation, created_at
		FROM lcr_results
		WHERE submission_id = $1
	`, submissionID).Scan(
		&lcr.TotalHQLA, &lcr.Level1, &lcr.Level2A, &lcr.Level2B,
		&lcr.Outflows.Retail, &lcr.Outflows.Wholesale, &lcr.Outflows.Secured, &lcr.Outflows.Derivatives,
		&lcr.Outflows.OtherContractual, &lcr.Outflows.OtherContingent,
		&lcr.TotalCashOutflows, &lcr.TotalCashInflows, &lcr.CappedInflows, &lcr.NetCashOutflows,
		&lcr.LCRRatio, &lcr.IsCompliant, &reconciliation, &r.CreatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get lcr result: %w", err)
	}
	lcr.Outflows.Total = lcr.TotalCashOutflows

	if err := json.Unmarshal(reconciliation, &r.Reconciliation); err != nil {
		return nil, fmt.Errorf("decode reconciliation: %w", err)
	}

	var asf, rsf []byte
	err = s.pool.QueryRow(ctx, `
		SELECT available_stable_funding, required_stable_funding, nsfr_ratio, is_compliant, asf_breakdown, rsf_breakdown
		FROM nsfr_results
		WHERE submission_id = $1
	`, submissionID).Scan(
		&r.NSFR.AvailableStableFunding, &r.NSFR.RequiredStableFunding,
		&r.NSFR.NSFRRatio, &r.NSFR.IsCompliant, &asf, &rsf,
	)
	if err != nil {
		return nil, fmt.Errorf("get nsfr result: %w", err)
	}
	if err := json.Unmarshal(asf, &r.NSFR.ASF); err != nil {
		return nil, fmt.Errorf("decode asf breakdown: %w", err)
	}
	if err := json.Unmarshal(rsf, &r.NSFR.RSF); err != nil {
		return nil, fmt.Errorf("decode rsf breakdown: %w", err)
	}

	if r.Breakdown, err = s.components(ctx, submissionID); err != nil {
		return nil, err
	}
	return &r, nil
}

// components loads the itemized breakdown and recomputes its totals
func (s *ResultStore) components(ctx context.Context, submissionID string) (breakdown.Result, error) {
	result := breakdown.Result{
		HQLA:     []breakdown.HQLAComponent{},
		Outflows: []breakdown.OutflowComponent{},
		Inflows:  []breakdown.InflowComponent{},
	}

	rows, err := s.pool.Query(ctx, `
		SELECT hqla_level, category, asset_class, total_amount, encumbered_amount, average_haircut,
			amount_after_haircut, liquidity_value_factor, uncapped_liquidity_value, cap_adjustment,
			liquidity_value, methodology, regulatory_reference, line_item_ids, record_count
		FROM hqla_components
		WHERE submission_id = $1
		ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return result, fmt.Errorf("list hqla components: %w", err)
	}
	for rows.Next() {
		var (
			c        breakdown.HQLAComponent
			level    int16
			category string
		)
		if err := rows.Scan(&level, &category, &c.AssetClass, &c.TotalAmount, &c.EncumberedAmount, &c.AverageHaircut,
			&c.AmountAfterHaircut, &c.LiquidityValueFactor, &c.UncappedLiquidityValue, &c.CapAdjustment,
			&c.LiquidityValue, &c.Methodology, &c.RegulatoryReference, &c.LineItemIDs, &c.RecordCount); err != nil {
			rows.Close()
			return result, fmt.Errorf("scan hqla component: %w", err)
		}
		c.Level = domain.HQLALevel(level)
		c.Category = domain.Category(category)
		result.HQLA = append(result.HQLA, c)
		result.Totals.HQLA += c.LiquidityValue
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate hqla components: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT outflow_category, category, product_type, counterparty_type, maturity_bucket,
			total_amount, effective_rate, computed_amount, methodology, regulatory_reference,
			line_item_ids, record_count
		FROM outflow_components
		WHERE submission_id = $1
		ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return result, fmt.Errorf("list outflow components: %w", err)
	}
	for rows.Next() {
		var (
			c                                     breakdown.OutflowComponent
			outflowCategory, category, cpty, mbkt string
		)
		if err := rows.Scan(&outflowCategory, &category, &c.ProductType, &cpty, &mbkt,
			&c.TotalAmount, &c.EffectiveRate, &c.ComputedAmount, &c.Methodology, &c.RegulatoryReference,
			&c.LineItemIDs, &c.RecordCount); err != nil {
			rows.Close()
			return result, fmt.Errorf("scan outflow component: %w", err)
		}
		c.OutflowCategory = liquidity.OutflowCategory(outflowCategory)
		c.FlowKey = breakdown.FlowKey{
			Category:         domain.Category(category),
			ProductType:      c.ProductType,
			CounterpartyType: domain.CounterpartyType(cpty),
			MaturityBucket:   domain.MaturityBucket(mbkt),
		}
		result.Outflows = append(result.Outflows, c)
		result.Totals.Outflows.Add(c.OutflowCategory, c.ComputedAmount)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate outflow components: %w", err)
	}

	rows, err = s.pool.Query(ctx, `
		SELECT category, product_type, counterparty_type, maturity_bucket,
			total_amount, effective_rate, computed_amount, methodology, regulatory_reference,
			line_item_ids, record_count
		FROM inflow_components
		WHERE submission_id = $1
		ORDER BY seq ASC
	`, submissionID)
	if err != nil {
		return result, fmt.Errorf("list inflow components: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			c                    breakdown.InflowComponent
			category, cpty, mbkt string
		)
		if err := rows.Scan(&category, &c.ProductType, &cpty, &mbkt,
			&c.TotalAmount, &c.EffectiveRate, &c.ComputedAmount, &c.Methodology, &c.RegulatoryReference,
			&c.LineItemIDs, &c.RecordCount); err != nil {
			return result, fmt.Errorf("scan inflow component: %w", err)
		}
		c.FlowKey = breakdown.FlowKey{
			Category:         domain.Category(category),
			ProductType:      c.ProductType,
			CounterpartyType: domain.CounterpartyType(cpty),
			MaturityBucket:   domain.MaturityBucket(mbkt),
		}
		result.Inflows = append(result.Inflows, c)
		result.Totals.Inflows += c.ComputedAmount
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("iterate inflow components: %w", err)
	}

	return result, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
