// Copyright (c) 2025 BVK Chaitanya

package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bvk/alphavol/ctxutil"
	"github.com/bvk/alphavol/syncmap"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// TelegramSecrets carries a Telegram bot token and the allow-listed
// usernames that may receive notifications and issue status commands.
type TelegramSecrets struct {
	BotToken string   `json:"token" yaml:"token"`
	OwnerID  string   `json:"owner" yaml:"owner"`
	OtherIDs []string `json:"others" yaml:"others"`
}

func (v *TelegramSecrets) Check() error {
	if len(v.BotToken) == 0 {
		return fmt.Errorf("bot token cannot be empty")
	}
	if len(v.OwnerID) == 0 {
		return fmt.Errorf("owner id cannot be empty")
	}
	if slices.Contains(v.OtherIDs, "") {
		return fmt.Errorf("empty string in other ids is not a valid id")
	}
	return nil
}

// Command is a user-invocable Telegram slash command handled by the bot,
// e.g. "status" returning per-strategy run state.
type Command struct {
	Purpose string
	Handler func(ctx context.Context, args []string) (string, error)
}

// Telegram is a Messenger backed by a Telegram bot. Chat-id discovery
// state lives only in memory; a restart re-learns chat ids the next time
// each operator messages the bot.
type Telegram struct {
	cg ctxutil.CloseGroup

	secrets TelegramSecrets

	bot  *bot.Bot
	self *models.User

	mu            sync.Mutex
	userChatIDMap map[string]int64

	commandMap syncmap.Map[string, *Command]
}

var _ Messenger = &Telegram{}

func NewTelegram(ctx context.Context, secrets TelegramSecrets) (*Telegram, error) {
	if err := secrets.Check(); err != nil {
		return nil, err
	}

	c := &Telegram{
		secrets:       secrets,
		userChatIDMap: make(map[string]int64),
	}

	b, err := bot.New(secrets.BotToken, bot.WithDefaultHandler(c.handler))
	if err != nil {
		return nil, err
	}
	self, err := b.GetMe(ctx)
	if err != nil {
		return nil, err
	}
	c.bot, c.self = b, self

	c.commandMap.Store("uptime", &Command{
		Purpose: "Prints orchestrator uptime",
		Handler: c.uptime,
	})

	if ok, err := c.bot.SetMyCommands(ctx, c.commandsParams()); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("could not set bot commands")
	}

	c.cg.Go(func(ctx context.Context) {
		c.bot.Start(ctx)
	})
	return c, nil
}

var processStart = time.Now()

func (c *Telegram) Close() {
	c.cg.Close()
}

// AddCommand registers a new operator-invocable slash command, e.g. wiring
// "status" to the orchestrator's status query.
func (c *Telegram) AddCommand(ctx context.Context, name, purpose string, handler func(context.Context, []string) (string, error)) error {
	if len(name) == 0 || len(purpose) == 0 || handler == nil {
		return os.ErrInvalid
	}
	cmd := &Command{Purpose: purpose, Handler: handler}
	if _, loaded := c.commandMap.LoadOrStore(name, cmd); loaded {
		return os.ErrExist
	}
	if ok, err := c.bot.SetMyCommands(ctx, c.commandsParams()); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("could not set bot commands")
	}
	return nil
}

func (c *Telegram) commandsParams() *bot.SetMyCommandsParams {
	var cmds []models.BotCommand
	for name, cdata := range c.commandMap.Range {
		cmds = append(cmds, models.BotCommand{Command: name, Description: cdata.Purpose})
	}
	return &bot.SetMyCommandsParams{Commands: cmds}
}

func (c *Telegram) isValidUser(user string) bool {
	return user == c.secrets.OwnerID || slices.Contains(c.secrets.OtherIDs, user)
}

// SendMessage implements Messenger. Failures to reach any one receiver are
// logged and ignored so that one unreachable operator never blocks the
// others.
func (c *Telegram) SendMessage(ctx context.Context, at time.Time, text string) {
	msg := at.Format("2006-01-02 15:04:05 MST") + " " + text

	receivers := append([]string{c.secrets.OwnerID}, c.secrets.OtherIDs...)
	for _, receiver := range receivers {
		c.mu.Lock()
		cid, ok := c.userChatIDMap[receiver]
		c.mu.Unlock()
		if !ok {
			slog.WarnContext(ctx, "could not notify receiver without a known chat id yet", "receiver", receiver)
			continue
		}
		if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{ChatID: cid, Text: msg}); err != nil {
			slog.ErrorContext(ctx, "could not notify receiver (ignored)", "receiver", receiver, "err", err)
		}
	}
}

func (c *Telegram) handler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	sender := update.Message.From.Username
	if !c.isValidUser(sender) {
		slog.WarnContext(ctx, "received message from non-authorized user (ignored)", "sender", sender)
		return
	}

	c.mu.Lock()
	c.userChatIDMap[sender] = update.Message.Chat.ID
	c.mu.Unlock()

	c.respond(ctx, update)
}

func (c *Telegram) respond(ctx context.Context, update *models.Update) {
	name, args, handler, ok := c.getCommand(update)
	if !ok {
		return
	}
	reply, err := handler(ctx, args)
	if err != nil {
		slog.ErrorContext(ctx, "could not handle command (ignored)", "cmd", name, "err", err)
		reply = err.Error()
	}
	if reply == "" {
		return
	}
	if _, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          update.Message.Chat.ID,
		Text:            reply,
		ReplyParameters: &models.ReplyParameters{MessageID: update.Message.ID},
	}); err != nil {
		slog.ErrorContext(ctx, "could not send reply (ignored)", "err", err)
	}
}

func (c *Telegram) getCommand(update *models.Update) (string, []string, func(context.Context, []string) (string, error), bool) {
	if len(update.Message.Entities) == 0 {
		return "", nil, nil, false
	}
	entity := update.Message.Entities[0]
	if entity.Type != models.MessageEntityTypeBotCommand || entity.Offset != 0 {
		return "", nil, nil, false
	}
	if len(update.Message.Text) == 0 || update.Message.Text[0] != '/' {
		return "", nil, nil, false
	}
	name := update.Message.Text[1:entity.Length]
	args := strings.Fields(strings.TrimSpace(update.Message.Text[entity.Length:]))
	cmd, ok := c.commandMap.Load(name)
	if !ok {
		return name, nil, nil, false
	}
	return name, args, cmd.Handler, true
}

func (c *Telegram) uptime(ctx context.Context, _ []string) (string, error) {
	const day = 24 * time.Hour
	d := time.Since(processStart)
	if d < day {
		return d.String(), nil
	}
	return fmt.Sprintf("%dd%v", d/day, d%day), nil
}
