package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"news-digest-bot/bot"
	"news-digest-bot/config"
	"news-digest-bot/digest"
	"news-digest-bot/feeds"
	"news-digest-bot/llm"
	"news-digest-bot/render"
	"news-digest-bot/scheduler"
	"news-digest-bot/scraper"
	"news-digest-bot/session"
	"news-digest-bot/settings"
	"news-digest-bot/snapshot"
	"news-digest-bot/topics"
)

func main() {
	// Load configuration first so the log level applies from the start.
	configPath := config.GetConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "path", configPath, "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("starting news digest bot")
	slog.Info("config loaded", "path", configPath)

	offsetMinutes, err := config.ParseUTCOffset(cfg.UTCOffset)
	if err != nil {
		slog.Error("invalid utc offset", "offset", cfg.UTCOffset, "error", err)
		os.Exit(1)
	}

	tgBot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		slog.Error("failed to initialize Telegram bot", "error", err)
		os.Exit(1)
	}
	slog.Info("telegram bot initialized", "username", tgBot.Self.UserName)

	// Initialize components
	registry := topics.NewRegistry()
	activeKeys := make([]string, 0, 4)
	for _, t := range registry.List() {
		activeKeys = append(activeKeys, t.Key)
	}

	fetchTimeout := time.Duration(cfg.FetchTimeoutSecs) * time.Second
	fetcher := feeds.NewFetcher(
		feeds.NewRSSParser(feeds.WithRSSTimeout(fetchTimeout)),
		feeds.NewNewsAPIClient(cfg.NewsAPIKey, feeds.WithNewsAPITimeout(fetchTimeout)),
	)

	claude := llm.NewClient(cfg.AnthropicAPIKey, llm.WithModel(cfg.ClaudeModel))
	snap := snapshot.NewStore()
	renderer := render.NewRenderer(claude, cfg.Language)
	sender := &telegramSender{api: tgBot}
	pages := scraper.NewPageReader(scraper.WithTimeout(fetchTimeout))

	app := &App{
		api:    tgBot,
		chatID: cfg.ChatID,
	}

	sched := scheduler.New(offsetMinutes, func() {
		app.runScheduledDigest()
	})

	sett, err := settings.NewStore(activeKeys, cfg.DigestTimes, cfg.ArticleCount, sched)
	if err != nil {
		slog.Error("failed to initialize settings", "error", err)
		os.Exit(1)
	}

	app.runner = digest.NewRunner(fetcher, snap, renderer, sender, sett, registry)

	// No speech collaborator wired; the engine degrades 🔊 to a text notice.
	app.engine = bot.NewEngine(sender, claude, nil, pages, app,
		session.NewStore(), snap, registry, sett)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	sched.Reschedule(cfg.DigestTimes)
	sched.Start()
	defer sched.Stop()
	slog.Info("digest scheduled", "times", cfg.DigestTimes, "utc_offset", cfg.UTCOffset)

	slog.Info("starting bot polling")
	app.run(ctx)
	slog.Info("bot stopped")
}

// App holds the running bot's dependencies and the last known chat.
type App struct {
	api    *tgbotapi.BotAPI
	engine *bot.Engine
	runner *digest.Runner

	mu     sync.RWMutex
	chatID int64
}

// Trigger starts a digest run in the background. Implements the engine's
// DigestTrigger for the /digest command.
func (a *App) Trigger(chatID int64) {
	go func() {
		if err := a.runner.Run(context.Background(), chatID); err != nil {
			slog.Error("digest run failed", "chat_id", chatID, "error", err)
		}
	}()
}

func (a *App) runScheduledDigest() {
	a.mu.RLock()
	chatID := a.chatID
	a.mu.RUnlock()

	if chatID == 0 {
		slog.Warn("cannot run scheduled digest: no chat known yet")
		return
	}
	if err := a.runner.Run(context.Background(), chatID); err != nil {
		slog.Error("scheduled digest run failed", "chat_id", chatID, "error", err)
	}
}

func (a *App) rememberChat(chatID int64) {
	a.mu.Lock()
	a.chatID = chatID
	a.mu.Unlock()
}

func (a *App) run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := a.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			a.api.StopReceivingUpdates()
			return
		case update := <-updates:
			a.handleUpdate(ctx, update)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		if cb.Message == nil {
			return
		}
		chatID := cb.Message.Chat.ID
		a.rememberChat(chatID)

		// Acknowledge the tap so the client stops its spinner.
		if _, err := a.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			slog.Warn("failed to answer callback", "error", err)
		}

		slog.Info("received callback", "chat_id", chatID, "token", cb.Data)
		a.engine.HandleCallback(ctx, chatID, cb.Data)
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	a.rememberChat(chatID)

	text := strings.TrimSpace(msg.Text)
	slog.Info("received message", "chat_id", chatID, "text", text)

	if msg.IsCommand() {
		a.engine.HandleCommand(ctx, chatID, msg.Command())
		return
	}
	a.engine.HandleText(ctx, chatID, text)
}

// telegramSender adapts the Bot API to the digest and engine sender
// contracts.
type telegramSender struct {
	api *tgbotapi.BotAPI
}

func (s *telegramSender) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := s.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (s *telegramSender) SendSection(ctx context.Context, chatID int64, text string, actions [][]render.Action) error {
	return s.SendKeyboard(ctx, chatID, text, actions)
}

func (s *telegramSender) SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]render.Action) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markup, ok := inlineKeyboard(rows); ok {
		msg.ReplyMarkup = markup
	}
	_, err := s.api.Send(msg)
	return err
}

func (s *telegramSender) SendTyping(ctx context.Context, chatID int64) {
	if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		slog.Debug("failed to send typing action", "chat_id", chatID, "error", err)
	}
}

func (s *telegramSender) SendVoice(ctx context.Context, chatID int64, audio []byte) error {
	voice := tgbotapi.NewVoice(chatID, tgbotapi.FileBytes{Name: "answer.ogg", Bytes: audio})
	_, err := s.api.Send(voice)
	return err
}

func inlineKeyboard(rows [][]render.Action) (tgbotapi.InlineKeyboardMarkup, bool) {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, action := range row {
			switch {
			case action.URL != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(action.Label, action.URL))
			case action.Token != "":
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(action.Label, action.Token))
			}
		}
		if len(buttons) > 0 {
			keyboard = append(keyboard, buttons)
		}
	}
	if len(keyboard) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...), true
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
