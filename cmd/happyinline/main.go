package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/happyinline/internal/clock"
	"github.com/smallbiznis/happyinline/internal/config"
	"github.com/smallbiznis/happyinline/internal/migration"
	"github.com/smallbiznis/happyinline/internal/observability"
	"github.com/smallbiznis/happyinline/internal/payment"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/providers/pdf"
	"github.com/smallbiznis/happyinline/internal/ratelimit"
	"github.com/smallbiznis/happyinline/internal/server"
	"github.com/smallbiznis/happyinline/internal/subscription"
	"github.com/smallbiznis/happyinline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Billing
		plan.Module,
		pdf.Module,
		ratelimit.Module,
		payment.Module,
		subscription.Module,

		server.Module,
	)
	app.Run()
}

// RegisterSnowflake builds the ID node. SNOWFLAKE_NODE must differ per replica.
func RegisterSnowflake() (*snowflake.Node, error) {
	nodeID := int64(1)
	if v := os.Getenv("SNOWFLAKE_NODE"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		nodeID = parsed
	}
	return snowflake.NewNode(nodeID)
}
