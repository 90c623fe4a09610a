// Package bot implements the conversation engine: command handling, the
// settings menu, and the per-session state machine that routes free text
// to grounded or ungrounded Q&A.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"news-digest-bot/llm"
	"news-digest-bot/render"
	"news-digest-bot/session"
	"news-digest-bot/settings"
	"news-digest-bot/snapshot"
	"news-digest-bot/topics"
)

// qaApology is sent when the Q&A collaborator fails.
const qaApology = "Sorry, I couldn't process that. Please try again."

// Sender delivers messages to the chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendKeyboard(ctx context.Context, chatID int64, text string, rows [][]render.Action) error
	SendTyping(ctx context.Context, chatID int64)
	SendVoice(ctx context.Context, chatID int64, audio []byte) error
}

// QAClient answers questions and generates topic definitions.
type QAClient interface {
	Answer(ctx context.Context, system string, turns []llm.Turn) (string, error)
	GenerateTopic(ctx context.Context, name string) (llm.TopicDef, error)
}

// Speech renders text as audio. Optional; a nil Speech degrades to a
// text notice.
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// PageReader extracts readable article text for story grounding.
// Optional; failures only mean less grounding context.
type PageReader interface {
	Extract(ctx context.Context, rawURL string) (string, error)
}

// DigestTrigger starts a digest run for a chat.
type DigestTrigger interface {
	Trigger(chatID int64)
}

// Engine routes updates through the session state machine.
type Engine struct {
	sender   Sender
	qa       QAClient
	speech   Speech
	pages    PageReader
	digest   DigestTrigger
	sessions *session.Store
	snapshot *snapshot.Store
	registry *topics.Registry
	settings *settings.Store
}

// NewEngine creates a conversation engine. speech and pages may be nil.
func NewEngine(
	sender Sender,
	qa QAClient,
	speech Speech,
	pages PageReader,
	digest DigestTrigger,
	sessions *session.Store,
	snap *snapshot.Store,
	registry *topics.Registry,
	sett *settings.Store,
) *Engine {
	return &Engine{
		sender:   sender,
		qa:       qa,
		speech:   speech,
		pages:    pages,
		digest:   digest,
		sessions: sessions,
		snapshot: snap,
		registry: registry,
		settings: sett,
	}
}

// HandleCommand processes a slash command.
func (e *Engine) HandleCommand(ctx context.Context, chatID int64, command string) {
	switch command {
	case "start", "help":
		e.sendHelp(ctx, chatID)
	case "digest":
		e.send(ctx, chatID, "⏳ Fetching your digest...")
		if e.digest != nil {
			e.digest.Trigger(chatID)
		}
	case "topics":
		e.sendTopicList(ctx, chatID)
	case "settings":
		e.sendSettingsMenu(ctx, chatID)
	case "clear":
		e.sessions.Get(chatID).Clear()
		e.send(ctx, chatID, "🧹 Conversation cleared.")
	default:
		e.send(ctx, chatID, "Unknown command. Send /help for the list of commands.")
	}
}

// HandleText routes free text according to the session's pending state.
func (e *Engine) HandleText(ctx context.Context, chatID int64, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	sess := e.sessions.Get(chatID)

	if pending, ok := sess.TakePendingStory(); ok {
		e.answerStoryQuestion(ctx, chatID, sess, pending, text)
		return
	}
	if field, ok := sess.TakePendingField(); ok {
		e.applySettingsInput(ctx, chatID, sess, field, text)
		return
	}

	e.answer(ctx, chatID, sess, text)
}

// HandleCallback processes an inline-button token round-tripped by the
// transport.
func (e *Engine) HandleCallback(ctx context.Context, chatID int64, token string) {
	switch {
	case strings.HasPrefix(token, "ask|"):
		e.handleAskCallback(ctx, chatID, token)
	case token == "tts":
		e.handleTTSCallback(ctx, chatID)
	case token == "set_topics":
		e.sendTopicsMenu(ctx, chatID)
	case token == "set_times":
		e.sendTimesMenu(ctx, chatID)
	case token == "set_count":
		e.sendCountMenu(ctx, chatID)
	case strings.HasPrefix(token, "topic_on|"):
		e.handleTopicOn(ctx, chatID, strings.TrimPrefix(token, "topic_on|"))
	case strings.HasPrefix(token, "topic_off|"):
		e.handleTopicOff(ctx, chatID, strings.TrimPrefix(token, "topic_off|"))
	case strings.HasPrefix(token, "topic_del|"):
		e.handleTopicDelete(ctx, chatID, strings.TrimPrefix(token, "topic_del|"))
	case token == "topic_new":
		e.sessions.Get(chatID).SetPendingField("newtopic")
		e.send(ctx, chatID, "What topic would you like to add? Send me a name.")
	case strings.HasPrefix(token, "edit_time|"):
		e.handleEditTime(ctx, chatID, strings.TrimPrefix(token, "edit_time|"))
	case token == "add_time":
		e.handleAddTime(ctx, chatID)
	case token == "remove_time":
		e.settings.RemoveSecondDeliveryTime()
		e.send(ctx, chatID, "✅ Second delivery time removed.")
	case strings.HasPrefix(token, "set_count|"):
		e.handleSetCount(ctx, chatID, strings.TrimPrefix(token, "set_count|"))
	default:
		slog.Warn("unrecognized callback token", "token", token)
	}
}

func (e *Engine) handleAskCallback(ctx context.Context, chatID int64, token string) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		slog.Warn("malformed ask token", "token", token)
		return
	}
	index, err := strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		slog.Warn("malformed ask index", "token", token)
		return
	}
	topicKey := parts[1]

	sess := e.sessions.Get(chatID)
	sess.SetPendingStory(topicKey, index)

	article, err := e.snapshot.Article(topicKey, index)
	if err != nil {
		e.send(ctx, chatID, "That story is no longer in today's digest, but go ahead and ask your question.")
		return
	}
	e.send(ctx, chatID, fmt.Sprintf("💬 Ask me anything about:\n%s", article.Title))
}

func (e *Engine) handleTTSCallback(ctx context.Context, chatID int64) {
	last := e.sessions.Get(chatID).LastAnswer()
	if last == "" {
		e.send(ctx, chatID, "Nothing to read out yet.")
		return
	}
	if e.speech == nil {
		e.send(ctx, chatID, "Voice playback is not available right now.")
		return
	}

	audio, err := e.speech.Synthesize(ctx, last)
	if err != nil {
		slog.Warn("speech synthesis failed", "chat_id", chatID, "error", err)
		e.send(ctx, chatID, "Voice playback is not available right now.")
		return
	}
	if err := e.sender.SendVoice(ctx, chatID, audio); err != nil {
		slog.Warn("failed to send voice", "chat_id", chatID, "error", err)
	}
}

// answerStoryQuestion answers free text grounded in the pending story. A
// stale reference degrades to an ungrounded answer.
func (e *Engine) answerStoryQuestion(ctx context.Context, chatID int64, sess *session.Session, pending session.PendingStory, text string) {
	article, err := e.snapshot.Article(pending.TopicKey, pending.Index)
	if err != nil {
		slog.Info("pending story not in snapshot, answering ungrounded",
			"topic", pending.TopicKey, "index", pending.Index)
		e.answer(ctx, chatID, sess, text)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Regarding the story %q:\n%s\n", article.Title, article.Summary)
	if e.pages != nil && article.Link != "" {
		if content, err := e.pages.Extract(ctx, article.Link); err == nil && content != "" {
			sb.WriteString("\nArticle text:\n")
			sb.WriteString(content)
			sb.WriteString("\n")
		} else if err != nil {
			slog.Debug("page extraction failed", "url", article.Link, "error", err)
		}
	}
	sb.WriteString("\n")
	sb.WriteString(text)

	e.answer(ctx, chatID, sess, sb.String())
}

// answer sends a question to the Q&A collaborator with the whole current
// snapshot as system context and replies with a 🔊 action attached.
func (e *Engine) answer(ctx context.Context, chatID int64, sess *session.Session, question string) {
	e.sender.SendTyping(ctx, chatID)

	sess.Append(session.RoleUser, question)

	turns := make([]llm.Turn, 0, session.ContextWindow)
	for _, t := range sess.Recent() {
		turns = append(turns, llm.Turn{Role: t.Role, Content: t.Text})
	}

	reply, err := e.qa.Answer(ctx, e.systemContext(), turns)
	if err != nil {
		slog.Warn("Q&A call failed", "chat_id", chatID, "error", err)
		reply = qaApology
	}

	sess.Append(session.RoleAssistant, reply)
	sess.SetLastAnswer(reply)

	row := [][]render.Action{{{Label: "🔊", Token: "tts"}}}
	if err := e.sender.SendKeyboard(ctx, chatID, reply, row); err != nil {
		slog.Warn("failed to send answer", "chat_id", chatID, "error", err)
	}
}

// systemContext summarizes the whole current snapshot as background for
// ungrounded questions.
func (e *Engine) systemContext() string {
	var sb strings.Builder
	sb.WriteString("You are a friendly news assistant. Answer concisely. " +
		"Today's digest, for reference:\n")

	for key, articles := range e.snapshot.All() {
		label := key
		if t, ok := e.registry.Get(key); ok {
			label = t.Label
		}
		fmt.Fprintf(&sb, "\n%s:\n", label)
		for i, a := range articles {
			fmt.Fprintf(&sb, "%d. %s", i+1, a.Title)
			if a.Summary != "" {
				fmt.Fprintf(&sb, " - %s", a.Summary)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// applySettingsInput validates free text against the consumed pending
// field. Invalid input re-arms the same field with a corrective prompt.
func (e *Engine) applySettingsInput(ctx context.Context, chatID int64, sess *session.Session, field, text string) {
	switch {
	case strings.HasPrefix(field, "time|"):
		slot, err := strconv.Atoi(strings.TrimPrefix(field, "time|"))
		if err != nil {
			slog.Warn("malformed pending time field", "field", field)
			return
		}
		if err := e.settings.SetDeliveryTime(slot, text); err != nil {
			sess.SetPendingField(field)
			e.send(ctx, chatID, "That doesn't look like a valid time. Send HH:MM, e.g. 07:30.")
			return
		}
		e.send(ctx, chatID, fmt.Sprintf("✅ Delivery time updated to %s.", text))

	case field == "count":
		n, err := strconv.Atoi(text)
		if err != nil {
			sess.SetPendingField(field)
			e.send(ctx, chatID, fmt.Sprintf("Send a number between %d and %d.", settings.MinArticleCount, settings.MaxArticleCount))
			return
		}
		if err := e.settings.SetArticleCount(n); err != nil {
			sess.SetPendingField(field)
			e.send(ctx, chatID, fmt.Sprintf("Send a number between %d and %d.", settings.MinArticleCount, settings.MaxArticleCount))
			return
		}
		e.send(ctx, chatID, fmt.Sprintf("✅ Articles per topic set to %d.", n))

	case field == "newtopic":
		e.createTopic(ctx, chatID, sess, text)

	default:
		slog.Warn("unknown pending settings field", "field", field)
	}
}

// createTopic turns a user-supplied name into a registered, active topic
// via the generation collaborator.
func (e *Engine) createTopic(ctx context.Context, chatID int64, sess *session.Session, name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		sess.SetPendingField("newtopic")
		e.send(ctx, chatID, "Send a short topic name, e.g. \"space exploration\".")
		return
	}

	e.sender.SendTyping(ctx, chatID)

	def, err := e.qa.GenerateTopic(ctx, name)
	if err != nil {
		slog.Warn("topic generation failed", "name", name, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't create that topic. Please try again.")
		return
	}

	label := strings.TrimSpace(def.Label)
	if label == "" {
		label = name
	}
	topic := topics.Topic{
		Key:   topics.Slugify(name),
		Label: label,
		Emoji: def.Emoji,
		Query: strings.TrimSpace(def.Query),
	}

	key, err := e.registry.Upsert(topic, true)
	if err != nil {
		slog.Warn("topic insert rejected", "name", name, "error", err)
		e.send(ctx, chatID, "Sorry, I couldn't create that topic. Please try again.")
		return
	}
	e.settings.ActivateTopic(key)

	e.send(ctx, chatID, fmt.Sprintf("✅ Added topic %s %s. It will appear in your next digest.", topic.Emoji, topic.Label))
}

func (e *Engine) handleTopicOn(ctx context.Context, chatID int64, key string) {
	topic, ok := e.registry.Get(key)
	if !ok {
		e.send(ctx, chatID, "That topic no longer exists.")
		return
	}
	e.settings.ActivateTopic(key)
	e.send(ctx, chatID, fmt.Sprintf("✅ %s enabled.", topic.Label))
}

func (e *Engine) handleTopicOff(ctx context.Context, chatID int64, key string) {
	topic, ok := e.registry.Get(key)
	if !ok {
		e.send(ctx, chatID, "That topic no longer exists.")
		return
	}
	if err := e.settings.DeactivateTopic(key); err != nil {
		if errors.Is(err, settings.ErrLastTopic) {
			e.send(ctx, chatID, "At least one topic must stay active.")
			return
		}
		slog.Warn("failed to deactivate topic", "key", key, "error", err)
		return
	}
	e.send(ctx, chatID, fmt.Sprintf("☑️ %s disabled.", topic.Label))
}

// handleTopicDelete coordinates registry removal with the active set: the
// last active topic cannot be deleted, and the built-in default is
// protected when nothing else would remain active.
func (e *Engine) handleTopicDelete(ctx context.Context, chatID int64, key string) {
	topic, ok := e.registry.Get(key)
	if !ok {
		e.send(ctx, chatID, "That topic no longer exists.")
		return
	}

	lastActive := e.settings.IsActive(key) && e.settings.CountOtherActive(key) == 0
	if lastActive && key != topics.DefaultKey {
		e.send(ctx, chatID, "At least one topic must stay active.")
		return
	}

	if err := e.registry.Remove(key, lastActive); err != nil {
		if errors.Is(err, topics.ErrProtectedTopic) {
			e.send(ctx, chatID, fmt.Sprintf("%s is the built-in default and can't be deleted while it is your only active topic.", topic.Label))
			return
		}
		slog.Warn("failed to remove topic", "key", key, "error", err)
		return
	}
	if e.settings.IsActive(key) {
		if err := e.settings.DeactivateTopic(key); err != nil {
			slog.Warn("failed to deactivate removed topic", "key", key, "error", err)
		}
	}

	e.send(ctx, chatID, fmt.Sprintf("🗑 %s deleted.", topic.Label))
}

func (e *Engine) handleEditTime(ctx context.Context, chatID int64, slotStr string) {
	slot, err := strconv.Atoi(slotStr)
	if err != nil || slot < 0 || slot >= settings.MaxDeliveryTimes {
		slog.Warn("malformed edit_time token", "slot", slotStr)
		return
	}
	e.sessions.Get(chatID).SetPendingField(fmt.Sprintf("time|%d", slot))
	e.send(ctx, chatID, "Send the new delivery time as HH:MM, e.g. 07:30.")
}

func (e *Engine) handleAddTime(ctx context.Context, chatID int64) {
	times := e.settings.DeliveryTimes()
	if len(times) >= settings.MaxDeliveryTimes {
		e.send(ctx, chatID, fmt.Sprintf("You already have %d delivery times. Edit or remove one instead.", settings.MaxDeliveryTimes))
		return
	}
	e.sessions.Get(chatID).SetPendingField(fmt.Sprintf("time|%d", len(times)))
	e.send(ctx, chatID, "Send the new delivery time as HH:MM, e.g. 19:00.")
}

func (e *Engine) handleSetCount(ctx context.Context, chatID int64, value string) {
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("malformed set_count token", "value", value)
		return
	}
	if err := e.settings.SetArticleCount(n); err != nil {
		e.send(ctx, chatID, fmt.Sprintf("Pick a number between %d and %d.", settings.MinArticleCount, settings.MaxArticleCount))
		return
	}
	e.send(ctx, chatID, fmt.Sprintf("✅ Articles per topic set to %d.", n))
}

func (e *Engine) sendHelp(ctx context.Context, chatID int64) {
	msg := fmt.Sprintf("Good day! 🗞️ I deliver a daily news digest and answer questions about the stories in it.\n\n"+
		"Commands:\n"+
		"/digest - Get today's digest now\n"+
		"/topics - List your topics\n"+
		"/settings - Topics, delivery times, article count\n"+
		"/clear - Reset our conversation\n"+
		"/help - Show this message\n\n"+
		"Tap 💬 under a story to ask about it, or just send me a question.\n\n"+
		"Your chat ID: %d", chatID)
	e.send(ctx, chatID, msg)
}

func (e *Engine) sendTopicList(ctx context.Context, chatID int64) {
	var sb strings.Builder
	sb.WriteString("Your topics:\n\n")
	for _, t := range e.registry.List() {
		marker := "☐"
		if e.settings.IsActive(t.Key) {
			marker = "✅"
		}
		fmt.Fprintf(&sb, "%s %s %s\n", marker, t.Emoji, t.Label)
	}
	sb.WriteString("\nManage them with /settings.")
	e.send(ctx, chatID, sb.String())
}

func (e *Engine) sendSettingsMenu(ctx context.Context, chatID int64) {
	text := fmt.Sprintf("⚙️ Settings\n\n"+
		"Active topics: %d\n"+
		"Delivery times: %s\n"+
		"Articles per topic: %d",
		len(e.settings.ActiveTopics()),
		strings.Join(e.settings.DeliveryTimes(), ", "),
		e.settings.ArticleCount())

	rows := [][]render.Action{
		{{Label: "📰 Topics", Token: "set_topics"}},
		{{Label: "🕒 Delivery times", Token: "set_times"}},
		{{Label: "🔢 Articles per topic", Token: "set_count"}},
	}
	e.sendKeyboard(ctx, chatID, text, rows)
}

func (e *Engine) sendTopicsMenu(ctx context.Context, chatID int64) {
	var rows [][]render.Action
	for _, t := range e.registry.List() {
		var toggle render.Action
		if e.settings.IsActive(t.Key) {
			toggle = render.Action{Label: fmt.Sprintf("✅ %s", t.Label), Token: "topic_off|" + t.Key}
		} else {
			toggle = render.Action{Label: fmt.Sprintf("☐ %s", t.Label), Token: "topic_on|" + t.Key}
		}
		rows = append(rows, []render.Action{
			toggle,
			{Label: "🗑", Token: "topic_del|" + t.Key},
		})
	}
	rows = append(rows, []render.Action{{Label: "➕ New topic", Token: "topic_new"}})

	e.sendKeyboard(ctx, chatID, "📰 Toggle topics on or off, or add a new one:", rows)
}

func (e *Engine) sendTimesMenu(ctx context.Context, chatID int64) {
	times := e.settings.DeliveryTimes()

	var rows [][]render.Action
	for i, t := range times {
		rows = append(rows, []render.Action{
			{Label: fmt.Sprintf("🕒 %s", t), Token: fmt.Sprintf("edit_time|%d", i)},
		})
	}
	if len(times) < settings.MaxDeliveryTimes {
		rows = append(rows, []render.Action{{Label: "➕ Add time", Token: "add_time"}})
	}
	if len(times) == settings.MaxDeliveryTimes {
		rows = append(rows, []render.Action{{Label: "➖ Remove second time", Token: "remove_time"}})
	}

	e.sendKeyboard(ctx, chatID, "🕒 Tap a delivery time to change it:", rows)
}

func (e *Engine) sendCountMenu(ctx context.Context, chatID int64) {
	var row []render.Action
	var rows [][]render.Action
	for n := settings.MinArticleCount; n <= settings.MaxArticleCount; n++ {
		row = append(row, render.Action{Label: strconv.Itoa(n), Token: fmt.Sprintf("set_count|%d", n)})
		if len(row) == 5 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	e.sendKeyboard(ctx, chatID, "🔢 How many stories per topic?", rows)
}

func (e *Engine) send(ctx context.Context, chatID int64, text string) {
	if err := e.sender.SendText(ctx, chatID, text); err != nil {
		slog.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (e *Engine) sendKeyboard(ctx context.Context, chatID int64, text string, rows [][]render.Action) {
	if err := e.sender.SendKeyboard(ctx, chatID, text, rows); err != nil {
		slog.Warn("failed to send keyboard", "chat_id", chatID, "error", err)
	}
}
