// Package telegram hosts the subscriber-facing bot: address registration,
// on-demand checks and notification delivery.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/odanko/outagebot/internal/address"
	"github.com/odanko/outagebot/internal/store"
)

// Checker performs an immediate schedule check for one subscriber.
type Checker interface {
	CheckNow(ctx context.Context, subscriberID string) (string, error)
}

// Config holds bot construction parameters.
type Config struct {
	// Token is the Telegram bot API token.
	Token string
	// PollTimeout is the long-poll timeout (default 10s).
	PollTimeout time.Duration
	// CheckTimeout bounds on-demand schedule checks (default 2m).
	CheckTimeout time.Duration
}

const (
	defaultPollTimeout  = 10 * time.Second
	defaultCheckTimeout = 2 * time.Minute
)

// Bot wires telebot handlers to the subscription store and the monitor.
type Bot struct {
	bot     *tele.Bot
	store   store.Store
	checker Checker
	convs   *conversations
	format  MessageFormatter
	logger  *zap.Logger

	checkTimeout time.Duration
}

// New builds the bot and registers all command handlers.
func New(cfg Config, st store.Store, checker Checker, logger *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("telegram token is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if checker == nil {
		return nil, errors.New("checker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = defaultCheckTimeout
	}

	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			if c != nil && c.Sender() != nil {
				logger.Error("telegram handler failed",
					zap.Int64("sender_id", c.Sender().ID), zap.Error(err))
				return
			}
			logger.Error("telegram handler failed", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}

	b := &Bot{
		bot:          tb,
		store:        st,
		checker:      checker,
		convs:        newConversations(),
		logger:       logger,
		checkTimeout: cfg.CheckTimeout,
	}
	b.registerHandlers()
	return b, nil
}

// Run starts long polling and blocks until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	go b.bot.Start()
	<-ctx.Done()
	b.bot.Stop()
	return ctx.Err()
}

// Send delivers a plain-text message to a subscriber. Satisfies the monitor's
// notifier interface; subscriber IDs are decimal chat IDs.
func (b *Bot) Send(_ context.Context, subscriberID, text string) error {
	chatID, err := strconv.ParseInt(subscriberID, 10, 64)
	if err != nil {
		return fmt.Errorf("subscriber id %q is not a chat id: %w", subscriberID, err)
	}
	if _, err := b.bot.Send(&tele.User{ID: chatID}, text); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

func (b *Bot) registerHandlers() {
	b.bot.Handle("/start", b.handleStart)
	b.bot.Handle("/set", b.handleSet)
	b.bot.Handle("/check", b.handleCheck)
	b.bot.Handle("/status", b.handleStatus)
	b.bot.Handle("/stop", b.handleStop)
	b.bot.Handle(tele.OnText, b.handleText)
}

func (b *Bot) handleStart(c tele.Context) error {
	return c.Send("Привіт! Я слідкую за графіком відключень електроенергії для вашої адреси та повідомляю про зміни.\n\n" +
		"/set — вказати адресу\n" +
		"/check — перевірити графік зараз\n" +
		"/status — поточна підписка\n" +
		"/stop — вимкнути сповіщення")
}

func (b *Bot) handleSet(c tele.Context) error {
	b.convs.begin(c.Sender().ID)
	return c.Send("Введіть назву вулиці (наприклад: вул. Хрещатик):")
}

func (b *Bot) handleCheck(c tele.Context) error {
	id := subscriberID(c)
	ctx, cancel := context.WithTimeout(context.Background(), b.checkTimeout)
	defer cancel()

	text, err := b.checker.CheckNow(ctx, id)
	if errors.Is(err, store.ErrNotSubscribed) {
		return c.Send("Адресу ще не задано. Скористайтесь /set.")
	}
	if err != nil {
		b.logger.Warn("on-demand check failed", zap.String("subscriber_id", id), zap.Error(err))
		return c.Send("Не вдалося отримати графік: " + err.Error())
	}
	return c.Send(text)
}

func (b *Bot) handleStatus(c tele.Context) error {
	id := subscriberID(c)
	sub, ok, err := b.store.Get(context.Background(), id)
	if err != nil {
		b.logger.Error("loading subscription failed", zap.String("subscriber_id", id), zap.Error(err))
		return c.Send("Сталася помилка, спробуйте пізніше.")
	}
	if !ok || !sub.Active() {
		return c.Send("Адресу ще не задано. Скористайтесь /set.")
	}
	return c.Send(b.format.FormatStatus(sub))
}

func (b *Bot) handleStop(c tele.Context) error {
	id := subscriberID(c)
	b.convs.clear(c.Sender().ID)
	if err := b.store.Delete(context.Background(), id); err != nil {
		b.logger.Error("deleting subscription failed", zap.String("subscriber_id", id), zap.Error(err))
		return c.Send("Сталася помилка, спробуйте пізніше.")
	}
	return c.Send("Сповіщення вимкнено. Повернутись можна через /set.")
}

// handleText drives the two-step registration dialog.
func (b *Bot) handleText(c tele.Context) error {
	chatID := c.Sender().ID
	p := b.convs.get(chatID)
	if p == nil {
		return c.Send("Не зрозумів. Скористайтесь /set, щоб вказати адресу, або /check для перевірки графіка.")
	}

	switch p.step {
	case stepStreet:
		street := address.NormalizeStreet(c.Text())
		if len([]rune(street)) < 3 {
			return c.Send("Занадто коротка назва вулиці, спробуйте ще раз:")
		}
		b.convs.advance(chatID, street)
		return c.Send("Тепер введіть номер будинку:")

	case stepHouse:
		addr, err := address.New(p.street, c.Text())
		if err != nil {
			if errors.Is(err, address.ErrHouseInvalid) {
				return c.Send("Номер будинку виглядає неправильно, спробуйте ще раз:")
			}
			b.convs.clear(chatID)
			return c.Send("Не вдалося зберегти адресу. Почніть знову з /set.")
		}
		b.convs.clear(chatID)
		return b.register(c, addr)
	}
	return nil
}

// register replaces the subscription and runs an immediate check so the
// subscriber sees the current schedule right away.
func (b *Bot) register(c tele.Context, addr address.Address) error {
	id := subscriberID(c)
	sub := store.Subscription{SubscriberID: id, Address: addr}
	sub.ResetState()
	if err := b.store.Put(context.Background(), sub); err != nil {
		b.logger.Error("saving subscription failed", zap.String("subscriber_id", id), zap.Error(err))
		return c.Send("Не вдалося зберегти адресу, спробуйте пізніше.")
	}
	if err := c.Send("Адресу збережено: " + addr.String() + "\nПеревіряю графік..."); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.checkTimeout)
	defer cancel()
	text, err := b.checker.CheckNow(ctx, id)
	if err != nil {
		b.logger.Warn("post-registration check failed", zap.String("subscriber_id", id), zap.Error(err))
		return c.Send("Поки не вдалося отримати графік: " + err.Error() + "\nЯ повідомлю, щойно він стане доступним.")
	}
	return c.Send(text)
}

func subscriberID(c tele.Context) string {
	return strconv.FormatInt(c.Sender().ID, 10)
}
