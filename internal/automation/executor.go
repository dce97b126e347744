package automation

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/whatsapp"
)

const (
	LeadStatusNew       = "new"
	LeadStatusHandedOff = "handed_off"
	LeadStatusGrouped   = "grouped"
)

type Sender interface {
	SendMessage(ctx context.Context, phoneNumberID, to, body string) (*whatsapp.SendResponse, error)
}

type Notifier interface {
	NotifyAction(res *dispatch.ActionResult)
}

// Executor carries out the actions the dispatcher decides on: it waits out
// the reply delay, sends through the chosen account, keeps leads up to date
// and tells operators about handoffs.
type Executor struct {
	db        *gorm.DB
	sender    Sender
	notifier  Notifier
	directory accounts.Directory
	perMinute int

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	// wait sleeps for d or until ctx is done.
	wait func(ctx context.Context, d time.Duration) error
}

// NewExecutor wires an executor. sender, notifier and directory may be nil;
// sendsPerMinute <= 0 disables per-account rate limiting.
func NewExecutor(db *gorm.DB, sender Sender, notifier Notifier, directory accounts.Directory, sendsPerMinute int) *Executor {
	return &Executor{
		db:        db,
		sender:    sender,
		notifier:  notifier,
		directory: directory,
		perMinute: sendsPerMinute,
		limiters:  make(map[string]*rate.Limiter),
		wait:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute performs res. Failed results are only surfaced to operators.
func (x *Executor) Execute(ctx context.Context, res *dispatch.ActionResult) error {
	if res == nil {
		return nil
	}
	if !res.Success {
		x.notify(res)
		return nil
	}

	var err error
	switch res.Type {
	case dispatch.ActionReply, dispatch.ActionSend:
		err = x.send(ctx, res)
	case dispatch.ActionWaiting:
		if res.Content != "" {
			err = x.send(ctx, res)
		}
	case dispatch.ActionRecord:
		err = x.saveLead(res, LeadStatusNew)
	case dispatch.ActionHandoff:
		err = x.saveLead(res, LeadStatusHandedOff)
		x.notify(res)
	case dispatch.ActionCreateGroup:
		err = x.saveLead(res, LeadStatusGrouped)
		x.notify(res)
	case dispatch.ActionNotify:
		x.notify(res)
	}

	if err == nil && res.Type != dispatch.ActionRecord && (len(res.Tags) > 0 || res.StageChange != "") {
		err = x.saveLead(res, "")
	}
	if res.NotifyHuman && res.Type != dispatch.ActionHandoff && res.Type != dispatch.ActionNotify {
		x.notify(res)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	executions.WithLabelValues(string(res.Type), outcome).Inc()
	return err
}

func (x *Executor) limiter(accountID string) *rate.Limiter {
	x.mu.Lock()
	defer x.mu.Unlock()

	l, ok := x.limiters[accountID]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(x.perMinute)), 1)
		x.limiters[accountID] = l
	}
	return l
}

func (x *Executor) send(ctx context.Context, res *dispatch.ActionResult) error {
	if x.sender == nil {
		return errors.New("no sender configured")
	}
	if err := x.wait(ctx, res.Delay); err != nil {
		return errors.Wrap(err, "waiting to send")
	}
	if x.perMinute > 0 {
		if err := x.limiter(res.SenderAccountID).Wait(ctx); err != nil {
			return errors.Wrapf(err, "rate limit for account %s", res.SenderAccountID)
		}
	}

	// An empty phone number id makes the client use its default number.
	var phoneNumberID string
	if acc, ok := accounts.Lookup(x.directory, res.SenderAccountID); ok {
		phoneNumberID = acc.PhoneNumberID
	}

	resp, err := x.sender.SendMessage(ctx, phoneNumberID, res.Event.UserID, res.Content)
	if err != nil {
		return errors.Wrapf(err, "send to %s", res.Event.UserID)
	}

	if x.db == nil {
		return nil
	}
	msg := models.Message{
		WaID:      res.Event.UserID,
		Sender:    "bot",
		AccountID: res.SenderAccountID,
		Content:   res.Content,
		Type:      "text",
		Status:    "sent",
	}
	if id := resp.MessageID(); id == "" {
		msg.Status = "queued"
	}
	return errors.Wrap(x.db.Create(&msg).Error, "save outgoing message")
}

// saveLead creates or updates the lead for the result's user. An empty
// status leaves the stored status alone.
func (x *Executor) saveLead(res *dispatch.ActionResult, status string) error {
	if x.db == nil {
		return nil
	}

	var lead models.Lead
	err := x.db.Where("wa_id = ?", res.Event.UserID).First(&lead).Error
	isNew := errors.Is(err, gorm.ErrRecordNotFound)
	if err != nil && !isNew {
		return errors.Wrap(err, "load lead")
	}

	if isNew {
		lead = models.Lead{
			WaID:        res.Event.UserID,
			Name:        res.Event.UserName,
			SourceGroup: res.Event.GroupID,
			Keyword:     res.Event.MatchedKeyword,
			Status:      LeadStatusNew,
		}
	}
	if res.Lead != nil {
		lead.MergeTags(res.Lead.Tags)
		if res.Lead.Stage != "" {
			lead.Stage = res.Lead.Stage
		}
	}
	lead.MergeTags(res.Tags)
	if res.StageChange != "" {
		lead.Stage = res.StageChange
	}
	if status != "" {
		lead.Status = status
	}
	if lead.Name == "" {
		lead.Name = res.Event.UserName
	}

	if isNew {
		return errors.Wrap(x.db.Create(&lead).Error, "create lead")
	}
	return errors.Wrap(x.db.Save(&lead).Error, "update lead")
}

func (x *Executor) notify(res *dispatch.ActionResult) {
	if x.notifier != nil {
		x.notifier.NotifyAction(res)
	}
}
