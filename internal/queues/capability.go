package queues

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/backoffice/internal/upstream"
)

const (
	probeFulfillment = "fulfillment"
	probeSettlement  = "settlement"
)

// Detector probes which downstream record types the tenant can read. A failed
// probe is never an error; it only downgrades that capability.
type Detector struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewDetector constructs a detector.
func NewDetector(logger *slog.Logger, metrics *Metrics) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger, metrics: metrics}
}

// Detect runs both probes concurrently. Each failure is swallowed
// independently, so one denied probe does not affect the other.
func (d *Detector) Detect(ctx context.Context, caller Caller, flow Flow) Capabilities {
	var caps Capabilities
	var g errgroup.Group
	g.Go(func() error {
		domain := upstream.And(upstream.Cond("picking_type_code", "=", flow.MovementTypeCode))
		caps.HasFulfillmentAccess = d.probe(ctx, caller, flow, probeFulfillment, flow.MovementModel, domain)
		return nil
	})
	g.Go(func() error {
		domain := upstream.And(upstream.Cond("move_type", "=", flow.DocumentMoveType))
		caps.HasSettlementAccess = d.probe(ctx, caller, flow, probeSettlement, flow.DocumentModel, domain)
		return nil
	})
	_ = g.Wait()
	return caps
}

func (d *Detector) probe(ctx context.Context, caller Caller, flow Flow, name, model string, domain upstream.Domain) bool {
	if _, err := caller.SearchCount(ctx, model, domain); err != nil {
		if ctx.Err() != nil {
			return false
		}
		d.logger.DebugContext(ctx, "capability probe failed",
			slog.String("flow", flow.Name),
			slog.String("probe", name),
			slog.String("model", model),
			slog.Bool("access_denied", upstream.IsAccessDenied(err)),
			slog.Any("error", err))
		d.metrics.downgrade(flow.Name, name)
		return false
	}
	return true
}
