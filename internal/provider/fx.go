package provider

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/clock"
	"github.com/smallbiznis/payflow/internal/config"
	"github.com/smallbiznis/payflow/internal/provider/adapters"
	"github.com/smallbiznis/payflow/internal/provider/adapters/sandbox"
	"github.com/smallbiznis/payflow/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("provider",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(NewWorkflow),
)

// NewWorkflow instantiates the provider adapter named by the orchestration
// config holder.
func NewWorkflow(registry *adapters.Registry, orchCfg *config.OrchestrationConfigHolder, log *zap.Logger, genID *snowflake.Node, clk clock.Clock) (domain.Workflow, error) {
	return registry.NewAdapter(orchCfg.Get().Provider, domain.AdapterConfig{
		Log:   log,
		GenID: genID,
		Clock: clk,
	})
}
