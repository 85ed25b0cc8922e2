package server

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rotisserie/eris"

	"github.com/argus-labs/epoch-keeper/internal/journal"
	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

const (
	defaultActionLimit = 20
	maxActionLimit     = journal.DefaultCapacity
)

type GetHealthResponse struct {
	IsServerRunning  bool       `json:"isServerRunning"`
	IsWatcherRunning bool       `json:"isWatcherRunning"`
	LastTickAt       *time.Time `json:"lastTickAt"`
	Ticks            uint64     `json:"ticks"`
}

func getHealth(source StatusSource) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		snap := source.Snapshot()
		res := GetHealthResponse{
			IsServerRunning:  true,
			IsWatcherRunning: snap.Running,
			Ticks:            snap.Ticks,
		}
		if !snap.LastTickAt.IsZero() {
			res.LastTickAt = &snap.LastTickAt
		}
		return ctx.JSON(res)
	}
}

type GetTaskResponse struct {
	Task   protocol.Task `json:"task"`
	TickID string        `json:"tickId,omitempty"`
}

func getTask(source StatusSource) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		snap := source.Snapshot()
		if !snap.HasTask {
			return fiber.NewError(fiber.StatusServiceUnavailable, "keeper has not observed the program yet")
		}
		return ctx.JSON(GetTaskResponse{Task: snap.Task, TickID: snap.TickID})
	}
}

type GetActionsResponse struct {
	Actions []journal.Entry `json:"actions"`
}

func getActions(store journal.Store) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		limit := ctx.QueryInt("limit", defaultActionLimit)
		if limit <= 0 || limit > maxActionLimit {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxActionLimit))
		}
		entries, err := store.Recent(ctx.UserContext(), limit)
		if err != nil {
			return eris.Wrap(err, "failed to read journal")
		}
		return ctx.JSON(GetActionsResponse{Actions: entries})
	}
}
