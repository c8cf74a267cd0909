package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"skwatch/internal/config"
	"skwatch/internal/datastore"
	"skwatch/internal/models"
)

// AuthHooks is the slice of the auth manager driven from the operator channel.
type AuthHooks interface {
	HandleOperatorText(text string) bool
	ResolveCaptcha(ok bool)
	RequestManualEscalation()
	EnsureAuth(ctx context.Context, force bool) models.AuthState
	CaptureCategoryScreenshot(ctx context.Context, categoryKey string) (string, error)
}

// SchedulerControls is the slice of the scheduler driven from the channel.
type SchedulerControls interface {
	TriggerFull(reason string)
	TriggerCategory(categoryKey, reason string)
	UpdateInterval(minutes int) error
}

// Bot is the two-way Discord operator channel: it delivers findings and
// prompts, and routes operator text and button presses back into the auth
// manager, the scheduler and the datastore.
type Bot struct {
	cfg     config.NotificationConfig
	session *discordgo.Session
	store   *datastore.DB
	limiter *rate.Limiter
	logger  zerolog.Logger

	logFile string

	auth  AuthHooks
	sched SchedulerControls
}

// NewBot creates the operator channel bot. Returns nil when no token is
// configured; callers then run without an operator channel.
func NewBot(cfg config.NotificationConfig, store *datastore.DB, logFile string, logger zerolog.Logger) (*Bot, error) {
	if cfg.DiscordBotToken == "" || cfg.ChannelID == "" {
		return nil, nil
	}
	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	interval := time.Minute / time.Duration(cfg.MessagesPerMin)
	bot := &Bot{
		cfg:     cfg,
		session: session,
		store:   store,
		limiter: rate.NewLimiter(rate.Every(interval), cfg.MessagesPerMin),
		logFile: logFile,
		logger:  logger.With().Str("component", "OperatorBot").Logger(),
	}
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onMessageCreate)
	session.AddHandler(bot.onInteractionCreate)
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	return bot, nil
}

// Bind wires the components the handlers act on. Must be called before Start.
func (b *Bot) Bind(auth AuthHooks, sched SchedulerControls) {
	b.auth = auth
	b.sched = sched
}

// Start opens the gateway connection.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info().Str("username", event.User.Username).Msg("Operator bot is ready")
}

// Send implements Sender with channel rate limiting.
func (b *Bot) Send(ctx context.Context, msg OutboundMessage) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	send := &discordgo.MessageSend{Content: msg.Text}
	if len(msg.Buttons) > 0 {
		row := discordgo.ActionsRow{}
		for _, btn := range msg.Buttons {
			if btn.URL != "" {
				row.Components = append(row.Components, discordgo.Button{
					Label: btn.Label,
					Style: discordgo.LinkButton,
					URL:   btn.URL,
				})
				continue
			}
			row.Components = append(row.Components, discordgo.Button{
				Label:    btn.Label,
				Style:    discordgo.PrimaryButton,
				CustomID: btn.CustomID,
			})
		}
		send.Components = []discordgo.MessageComponent{row}
	}
	_, err := b.session.ChannelMessageSendComplex(b.cfg.ChannelID, send)
	return err
}

func (b *Bot) sendText(text string) {
	if err := b.Send(context.Background(), OutboundMessage{Text: text}); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send message")
	}
}

// Prompter implementation. Prompts go out as ordinary channel messages; the
// replies come back through onMessageCreate and the auth hooks.

func (b *Bot) PromptManualEscalation(ctx context.Context) error {
	return b.Send(ctx, OutboundMessage{
		Text: "🤖 Automatic captcha solving failed. Take over manually?",
		Buttons: []Button{
			{Label: "Take over", CustomID: "auth:manual"},
			{Label: "Cancel", CustomID: "auth:captcha_cancel"},
		},
	})
}

func (b *Bot) PromptCaptcha(ctx context.Context) error {
	return b.Send(ctx, OutboundMessage{
		Text: "🧩 Please solve the captcha in the browser session, then confirm.",
		Buttons: []Button{
			{Label: "Done", CustomID: "auth:captcha_done"},
			{Label: "Cancel", CustomID: "auth:captcha_cancel"},
		},
	})
}

func (b *Bot) PromptSMSCode(ctx context.Context, attemptsLeft int) error {
	return b.Send(ctx, OutboundMessage{
		Text: fmt.Sprintf("📱 Reply with the 6-digit SMS code (%d attempt(s) left).", attemptsLeft),
	})
}

func (b *Bot) Notify(ctx context.Context, text string) error {
	return b.Send(ctx, OutboundMessage{Text: text})
}

// fromOperator filters events down to the configured channel and operator.
func (b *Bot) fromOperator(channelID, userID string) bool {
	if channelID != b.cfg.ChannelID {
		return false
	}
	if b.cfg.OperatorUserID != "" && userID != b.cfg.OperatorUserID {
		return false
	}
	return true
}

func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID {
		return
	}
	if !b.fromOperator(m.ChannelID, m.Author.ID) {
		return
	}

	text := strings.TrimSpace(m.Content)
	if text == "" {
		return
	}

	// Pending auth waits get first pick: captcha done/cancel phrases and
	// SMS codes never reach the command parser.
	if b.auth != nil && b.auth.HandleOperatorText(text) {
		return
	}

	b.handleCommand(text)
}

func (b *Bot) handleCommand(text string) {
	fields := strings.Fields(strings.ToLower(text))
	args := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "status":
		b.sendText(b.statusOverview())
	case "report":
		b.sendText(b.failureReport())
	case "diag":
		b.sendText(b.diagnosticSnapshot())
	case "check":
		if b.sched == nil {
			return
		}
		if len(args) < 2 || strings.EqualFold(args[1], "all") {
			b.sched.TriggerFull("operator")
			b.sendText("🚀 Full check queued.")
			return
		}
		b.sched.TriggerCategory(strings.ToUpper(args[1]), "operator")
		b.sendText(fmt.Sprintf("🚀 Check of `%s` queued.", strings.ToUpper(args[1])))
	case "interval":
		if b.sched == nil || len(args) < 2 {
			b.sendText("Usage: interval <minutes>")
			return
		}
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			b.sendText("Usage: interval <minutes>")
			return
		}
		if err := b.sched.UpdateInterval(minutes); err != nil {
			b.sendText("⚠️ " + err.Error())
			return
		}
		b.sendText(fmt.Sprintf("⏱️ Check interval set to %d minute(s).", minutes))
	case "login":
		if b.auth == nil {
			return
		}
		b.sendText("🔐 Forcing a fresh login...")
		go func() {
			state := b.auth.EnsureAuth(context.Background(), true)
			b.sendText(fmt.Sprintf("🔐 Login finished: %s", state))
		}()
	case "pause", "resume":
		if len(args) < 3 {
			b.sendText(fmt.Sprintf("Usage: %s <category> <city>", fields[0]))
			return
		}
		on := fields[0] == "resume"
		catKey, cityKey := strings.ToUpper(args[1]), strings.ToLower(args[2])
		if err := b.store.SetWatchEnabled(catKey, cityKey, on); err != nil {
			b.sendText("⚠️ " + err.Error())
			return
		}
		b.sendText(fmt.Sprintf("✅ Watch `%s/%s` %sd.", catKey, cityKey, fields[0]))
	case "enable", "disable":
		if len(args) < 2 {
			b.sendText(fmt.Sprintf("Usage: %s <category>", fields[0]))
			return
		}
		on := fields[0] == "enable"
		catKey := strings.ToUpper(args[1])
		if err := b.store.SetCategoryEnabled(catKey, on); err != nil {
			b.sendText("⚠️ " + err.Error())
			return
		}
		b.sendText(fmt.Sprintf("✅ Category `%s` %sd.", catKey, fields[0]))
	case "screenshot":
		if b.auth == nil || len(args) < 2 {
			b.sendText("Usage: screenshot <category>")
			return
		}
		catKey := strings.ToUpper(args[1])
		go func() {
			path, err := b.auth.CaptureCategoryScreenshot(context.Background(), catKey)
			if err != nil {
				b.sendText("⚠️ Screenshot failed: " + err.Error())
				return
			}
			b.sendScreenshot(catKey, path)
		}()
	default:
		b.sendText("Commands: status, report, diag, check [category|all], interval <min>, login, pause/resume <cat> <city>, enable/disable <cat>, screenshot <cat>")
	}
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}
	var userID string
	if i.Member != nil && i.Member.User != nil {
		userID = i.Member.User.ID
	} else if i.User != nil {
		userID = i.User.ID
	}
	if !b.fromOperator(i.ChannelID, userID) {
		return
	}

	// Acknowledge immediately; the work happens after.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		b.logger.Error().Err(err).Msg("Failed to acknowledge interaction")
	}

	customID := i.MessageComponentData().CustomID
	parts := strings.Split(customID, ":")

	switch {
	case customID == "auth:manual":
		if b.auth != nil {
			b.auth.RequestManualEscalation()
		}
	case customID == "auth:captcha_done":
		if b.auth != nil {
			b.auth.ResolveCaptcha(true)
		}
	case customID == "auth:captcha_cancel":
		if b.auth != nil {
			// Resolves whichever wait is pending (escalation or captcha)
			// with a refusal.
			b.auth.HandleOperatorText("cancel")
		}
	case len(parts) == 3 && parts[0] == "cat" && parts[1] == "check":
		if b.sched != nil {
			b.sched.TriggerCategory(parts[2], "operator button")
			b.sendText(fmt.Sprintf("🚀 Check of `%s` queued.", parts[2]))
		}
	case len(parts) == 4 && parts[0] == "watch" && parts[1] == "off":
		if err := b.store.SetWatchEnabled(parts[2], parts[3], false); err != nil {
			b.sendText("⚠️ " + err.Error())
			return
		}
		b.sendText(fmt.Sprintf("⏸️ Watch `%s/%s` paused.", parts[2], parts[3]))
	default:
		b.logger.Warn().Str("custom_id", customID).Msg("Unknown interaction")
	}
}

// OnCategoryDone reports a finished single-category check back to the channel.
func (b *Bot) OnCategoryDone(categoryKey string, findings, errors int) {
	b.sendText(FormatCategoryResult(categoryKey, findings, errors))
}

func (b *Bot) statusOverview() string {
	counts, err := b.store.CountWatches()
	if err != nil {
		return "⚠️ " + err.Error()
	}
	lastRun, err := b.store.LastRun()
	if err != nil {
		lastRun = nil
	}
	authState := "unknown"
	if state, ok, err := b.store.SettingsGet("auth_state"); err == nil && ok {
		authState = state
	}
	interval := "default"
	if text, ok, err := b.store.SettingsGet("check_interval_minutes"); err == nil && ok {
		interval = text + "m"
	}
	overview := FormatStatus(counts, lastRun, authState, interval)
	if active, err := b.store.EnabledWatches(); err == nil && len(active) > 0 {
		var sb strings.Builder
		sb.WriteString("\nActive watches:\n```\n")
		for _, w := range active {
			fmt.Fprintf(&sb, "%s/%s %s\n", w.CategoryKey, w.CityKey, w.Status)
		}
		sb.WriteString("```")
		overview += sb.String()
	}
	return overview
}

func (b *Bot) diagnosticSnapshot() string {
	diags, err := b.store.LatestDiagnostics(20)
	if err != nil {
		return "⚠️ " + err.Error()
	}
	if len(diags) == 0 {
		return "No diagnostics recorded yet."
	}
	var sb strings.Builder
	sb.WriteString("🔍 **Latest diagnostics**\n```\n")
	for _, diag := range diags {
		fmt.Fprintf(&sb, "%s %s/%s %s %s %s\n",
			diag.RecordedAt.UTC().Format("02.01 15:04"),
			diag.CategoryKey, diag.CityKey, diag.Status, diag.DiffAnchor, diag.Comment)
	}
	sb.WriteString("```")
	return sb.String()
}

func (b *Bot) failureReport() string {
	report, err := BuildFailureReport(b.store, b.logFile)
	if err != nil {
		return "⚠️ " + err.Error()
	}
	return report
}

func (b *Bot) sendScreenshot(categoryKey, path string) {
	if err := b.limiter.Wait(context.Background()); err != nil {
		return
	}
	file, err := openScreenshot(path)
	if err != nil {
		b.sendText("⚠️ " + err.Error())
		return
	}
	defer file.Close()
	_, err = b.session.ChannelMessageSendComplex(b.cfg.ChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("📸 `%s`", categoryKey),
		Files:   []*discordgo.File{{Name: "screenshot.png", ContentType: "image/png", Reader: file}},
	})
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to send screenshot")
	}
}
