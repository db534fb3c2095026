package api

import (
	"github.com/SherClockHolmes/webpush-go"

	"door-access-backend/config"
	"door-access-backend/internal/clock"
	"door-access-backend/internal/emergency"
	"door-access-backend/internal/engine"
	"door-access-backend/internal/notify"
	"door-access-backend/internal/schedule"
	"door-access-backend/internal/store"
	"door-access-backend/internal/tempcode"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store     store.Store
	clock     clock.Clock
	engine    *engine.Engine
	emergency *emergency.Service
	resolver  *schedule.Resolver
	tempCodes *tempcode.Service
	notify    *notify.WorkerPool
	webpush   *webpush.Options
	engineCfg *config.EngineConfig
}

// NewHandler creates a new API handler. notifyPool may be nil when operator
// push alerts are not configured.
func NewHandler(s store.Store, c clock.Clock, eng *engine.Engine, em *emergency.Service, r *schedule.Resolver, tc *tempcode.Service, notifyPool *notify.WorkerPool, webpushOptions *webpush.Options, engineCfg *config.EngineConfig) *Handler {
	return &Handler{
		store:     s,
		clock:     c,
		engine:    eng,
		emergency: em,
		resolver:  r,
		tempCodes: tc,
		notify:    notifyPool,
		webpush:   webpushOptions,
		engineCfg: engineCfg,
	}
}
