package automation

import (
	"context"
	"time"

	"gorm.io/gorm"

	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/logger"
	"chat-trigger-engine/internal/models"
)

var log = logger.Get("automation")

type Dispatcher interface {
	Dispatch(ctx context.Context, ev dispatch.Event, cfg dispatch.TriggerActionConfig) *dispatch.ActionResult
}

// Engine runs one inbound message through resolve, dispatch and execute,
// logging every decision.
//
// Messages handed to Submit are dispatched one at a time per user, in
// arrival order, so classify and conversation updates for one user never
// interleave. Execution, including the reply delay, runs on a second
// per-user queue: the next message can be dispatched while an earlier
// reply waits, and replies still go out in order.
type Engine struct {
	Dispatcher Dispatcher
	Configs    *ConfigSource
	Executor   *Executor
	DB         *gorm.DB

	inbox  keyedQueue
	outbox keyedQueue
}

func NewEngine(dispatcher Dispatcher, configs *ConfigSource, executor *Executor, db *gorm.DB) *Engine {
	return &Engine{
		Dispatcher: dispatcher,
		Configs:    configs,
		Executor:   executor,
		DB:         db,
	}
}

// Submit queues ev behind earlier messages from the same user and returns
// immediately.
func (e *Engine) Submit(ctx context.Context, ev dispatch.Event) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	e.inbox.Push(ev.UserID, func() {
		res, entry := e.decide(ctx, ev)
		if res == nil {
			return
		}
		e.outbox.Push(ev.UserID, func() {
			e.execute(ctx, res, entry)
		})
	})
}

// ProcessIncomingMessage dispatches ev under the config in effect for its
// group and executes the decision on the calling goroutine. It blocks for
// the reply delay and does not order against other calls; inbound traffic
// goes through Submit.
func (e *Engine) ProcessIncomingMessage(ctx context.Context, ev dispatch.Event) *dispatch.ActionResult {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now()
	}
	res, entry := e.decide(ctx, ev)
	if res == nil {
		return nil
	}
	e.execute(ctx, res, entry)
	return res
}

// decide resolves the config, dispatches and logs the action. A nil result
// means the message was skipped.
func (e *Engine) decide(ctx context.Context, ev dispatch.Event) (*dispatch.ActionResult, *models.ActionLog) {
	cfg := e.Configs.Effective(ev.GroupID)
	if !cfg.IsActive {
		log.Printf("Trigger config for group %s is inactive, skipping message from %s", ev.GroupID, ev.UserID)
		return nil, nil
	}

	res := e.Dispatcher.Dispatch(ctx, ev, cfg)
	e.Configs.RecordStats(ev.GroupID, res)

	entry := models.ActionLogFrom(res)
	if e.DB != nil {
		if err := e.DB.Create(&entry).Error; err != nil {
			log.Printf("Error logging action %s: %v", res.ID, err)
		}
	}
	return res, &entry
}

func (e *Engine) execute(ctx context.Context, res *dispatch.ActionResult, entry *models.ActionLog) {
	if e.Executor == nil {
		return
	}

	execErr := e.Executor.Execute(ctx, res)
	if execErr != nil {
		log.Printf("Error executing %s action for %s: %v", res.Type, res.Event.UserID, execErr)
	} else {
		log.Printf("Executed %s action for %s (intent=%s, rules=%v)", res.Type, res.Event.UserID, res.Intent, res.MatchedRules)
	}

	if e.DB != nil && entry.ID != 0 {
		updates := map[string]interface{}{"executed": execErr == nil}
		if execErr != nil {
			updates["error_message"] = execErr.Error()
		}
		if err := e.DB.Model(entry).Updates(updates).Error; err != nil {
			log.Printf("Error updating action log %s: %v", res.ID, err)
		}
	}
}
