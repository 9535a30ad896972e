package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-ai-generation/internal/config"
	"telegram-ai-generation/internal/domain"
	"telegram-ai-generation/internal/domain/model"
	"telegram-ai-generation/internal/domain/ports/adapter"
	"telegram-ai-generation/internal/domain/ports/repository"
	red "telegram-ai-generation/internal/infra/redis"
	"telegram-ai-generation/internal/usecase"
)

var (
	_ adapter.DeliverySink = (*RealBot)(nil)
	_ adapter.FileSource   = (*RealBot)(nil)
)

// RealBot polls Telegram updates, routes commands and media to the use cases,
// and implements the delivery and file-source ports the orchestrator needs.
type RealBot struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	users       usecase.UserUseCase
	ledger      usecase.CreditLedger
	orch        usecase.GenerationOrchestrator
	payments    usecase.PaymentUseCase
	plans       repository.PlanRepository
	collector   *usecase.MediaBatchCollector
	fileCache   *red.FileCache
	rateLimiter *red.RateLimiter
	limitPerMin int

	httpc         *http.Client
	adminIDs      map[int64]struct{}
	updateWorkers int
	cancelPolling context.CancelFunc
	log           *zerolog.Logger
}

type RealBotDeps struct {
	Users       usecase.UserUseCase
	Ledger      usecase.CreditLedger
	Payments    usecase.PaymentUseCase
	Plans       repository.PlanRepository
	Collector   *usecase.MediaBatchCollector
	FileCache   *red.FileCache
	RateLimiter *red.RateLimiter
	LimitPerMin int
}

func NewRealBot(cfg *config.BotConfig, deps RealBotDeps, updateWorkers int, logger *zerolog.Logger) (*RealBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if deps.Users == nil || deps.Ledger == nil || deps.Collector == nil {
		return nil, errors.New("bot deps incomplete")
	}
	if updateWorkers <= 0 {
		updateWorkers = 5
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	adminMap := map[int64]struct{}{}
	for _, id := range cfg.AdminIDs {
		adminMap[id] = struct{}{}
	}
	l := logger.With().Str("component", "TelegramBot").Logger()
	return &RealBot{
		bot:           bot,
		cfg:           cfg,
		users:         deps.Users,
		ledger:        deps.Ledger,
		payments:      deps.Payments,
		plans:         deps.Plans,
		collector:     deps.Collector,
		fileCache:     deps.FileCache,
		rateLimiter:   deps.RateLimiter,
		limitPerMin:   deps.LimitPerMin,
		httpc:         &http.Client{Timeout: 60 * time.Second},
		adminIDs:      adminMap,
		updateWorkers: updateWorkers,
		log:           &l,
	}, nil
}

// SetOrchestrator and SetPayments break the construction cycle: the
// orchestrator and payment use case need the bot as delivery sink, and the
// bot needs them for submits and purchases.
func (b *RealBot) SetOrchestrator(orch usecase.GenerationOrchestrator) { b.orch = orch }

func (b *RealBot) SetPayments(p usecase.PaymentUseCase) { b.payments = p }

func (b *RealBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	b.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < b.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up := <-updateChan:
					if err := b.handleUpdate(ctx, up); err != nil {
						b.log.Error().Err(err).Int("worker", id).Msg("update handling failed")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

func (b *RealBot) StopPolling() {
	if b.cancelPolling != nil {
		b.cancelPolling()
	}
}

// ----- adapter.DeliverySink -----

func (b *RealBot) DeliverArtifacts(ctx context.Context, chatID int64, artifacts []adapter.Artifact) error {
	var firstErr error
	for _, a := range artifacts {
		file := tgbotapi.FileBytes{Name: a.Filename, Bytes: a.Data}
		var err error
		if strings.HasSuffix(a.Filename, ".mp4") {
			_, err = b.bot.Send(tgbotapi.NewVideo(chatID, file))
		} else {
			_, err = b.bot.Send(tgbotapi.NewPhoto(chatID, file))
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (b *RealBot) DeliverFailure(ctx context.Context, chatID int64, text string) error {
	return b.send(chatID, "⚠️ "+text)
}

func (b *RealBot) Notify(ctx context.Context, chatID int64, text string) error {
	return b.send(chatID, text)
}

// ----- adapter.FileSource -----

// FetchFile resolves a Telegram file id to raw bytes, consulting the redis
// cache first so album resubmits do not hit the Bot API again.
func (b *RealBot) FetchFile(ctx context.Context, chatID int64, fileID string) ([]byte, error) {
	if b.fileCache != nil {
		if data, err := b.fileCache.Fetch(ctx, chatID, fileID); err == nil {
			return data, nil
		}
	}
	url, err := b.bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if b.fileCache != nil {
		if err := b.fileCache.Store(ctx, chatID, fileID, data); err != nil {
			b.log.Warn().Err(err).Str("file_id", fileID).Msg("file cache store failed")
		}
	}
	return data, nil
}

// ----- update routing -----

func (b *RealBot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return b.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		return nil
	}
	chatID := msg.Chat.ID
	userID := msg.From.ID

	command := "message"
	if msg.IsCommand() {
		command = "/" + msg.Command()
	}
	if !b.allow(ctx, userID, command) {
		return b.send(chatID, "Too many requests. Please slow down.")
	}

	if _, err := b.users.EnsureUser(ctx, userID, msg.From.UserName); err != nil {
		b.log.Error().Err(err).Int64("tg_id", userID).Msg("ensure user failed")
		return b.send(chatID, "Something went wrong. Try again later.")
	}

	if len(msg.Photo) > 0 {
		return b.handlePhoto(ctx, msg)
	}

	switch command {
	case "/start":
		return b.sendMainMenu(ctx, chatID,
			"Send product photos with a caption describing the shot you want, and I will generate it.")
	case "/plans":
		return b.sendPlansMenu(ctx, chatID)
	case "/balance", "/status":
		return b.sendBalance(ctx, chatID, userID)
	case "/cancel":
		b.collector.ClearChat(chatID)
		return b.send(chatID, "Pending uploads cleared.")
	case "/help":
		return b.send(chatID, "Send photos with a caption to generate.\n"+
			"/plans — available plans\n/balance — remaining credits\n/cancel — drop pending uploads")
	case "/stats":
		if _, ok := b.adminIDs[userID]; !ok {
			return nil
		}
		n, err := b.users.Count(ctx)
		if err != nil {
			return b.send(chatID, "Failed to count users.")
		}
		return b.send(chatID, fmt.Sprintf("Users: %d", n))
	default:
		if strings.TrimSpace(msg.Text) != "" {
			return b.submitGeneration(ctx, chatID, userID, model.CreditPhoto, msg.Text, nil)
		}
		return nil
	}
}

// handlePhoto feeds album items into the collector; the item carrying the
// caption owns the debounce wait and the submit.
func (b *RealBot) handlePhoto(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	userID := msg.From.ID
	fileID := msg.Photo[len(msg.Photo)-1].FileID // largest size

	groupID := msg.MediaGroupID
	if groupID == "" {
		// Single photo: its own one-item group keyed by message id.
		groupID = fmt.Sprintf("solo-%d", msg.MessageID)
	}
	b.collector.Push(chatID, groupID, fileID)

	caption := strings.TrimSpace(msg.Caption)
	if caption == "" {
		return nil
	}

	kind := model.CreditPhoto
	if strings.HasPrefix(caption, "/animate") {
		kind = model.CreditVideo
		caption = strings.TrimSpace(strings.TrimPrefix(caption, "/animate"))
	}

	batch, err := b.collector.Collect(ctx, chatID, groupID)
	if err != nil {
		return err
	}
	if len(batch.FileIDs) == 0 {
		return nil
	}
	return b.submitGeneration(ctx, chatID, userID, kind, caption, batch.FileIDs)
}

func (b *RealBot) submitGeneration(ctx context.Context, chatID, userID int64, kind model.CreditKind, prompt string, fileIDs []string) error {
	if b.orch == nil {
		return b.send(chatID, "Generation is not available right now.")
	}
	_, err := b.orch.Submit(ctx, usecase.SubmitRequest{
		UserID:  userID,
		ChatID:  chatID,
		Kind:    kind,
		Prompt:  prompt,
		FileIDs: fileIDs,
	})
	switch {
	case err == nil:
		return b.send(chatID, "✨ Got it! Generating — this can take a few minutes.")
	case errors.Is(err, domain.ErrJobAlreadyRunning):
		return b.send(chatID, "You already have a generation in progress. Wait for it to finish.")
	case errors.Is(err, domain.ErrNoCreditsLeft):
		if serr := b.send(chatID, "You are out of credits."); serr != nil {
			return serr
		}
		return b.sendPlansMenu(ctx, chatID)
	default:
		b.log.Error().Err(err).Int64("tg_id", userID).Msg("submit failed")
		return b.send(chatID, "Could not start the generation. Your credit was not spent.")
	}
}

func (b *RealBot) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if query.From == nil {
		return errors.New("invalid callback query")
	}
	defer func() { _, _ = b.bot.Request(tgbotapi.NewCallback(query.ID, "")) }()

	chatID := query.From.ID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	data := strings.TrimSpace(query.Data)

	if !b.allow(ctx, query.From.ID, "cb:"+data) {
		return b.send(chatID, "Too many requests. Please slow down.")
	}

	switch {
	case data == "cmd:plans":
		return b.sendPlansMenu(ctx, chatID)
	case data == "cmd:balance":
		return b.sendBalance(ctx, chatID, query.From.ID)
	case strings.HasPrefix(data, "buy:"):
		return b.startPurchase(ctx, chatID, query.From.ID, strings.TrimPrefix(data, "buy:"))
	default:
		return fmt.Errorf("unknown callback data %q", data)
	}
}

func (b *RealBot) startPurchase(ctx context.Context, chatID, userID int64, planID string) error {
	if b.payments == nil {
		return b.send(chatID, "Payments are not available right now.")
	}
	pay, err := b.payments.Create(ctx, userID, planID)
	if err != nil {
		b.log.Error().Err(err).Int64("tg_id", userID).Str("plan_id", planID).Msg("payment create failed")
		return b.send(chatID, "Failed to create the payment. Try again later.")
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("Pay now", pay.PayURL)),
	)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Invoice for %d ₽ created. The plan activates automatically after payment.", pay.AmountRUB))
	msg.ReplyMarkup = kb
	_, err = b.bot.Send(msg)
	return err
}

// ----- menus -----

func (b *RealBot) sendMainMenu(ctx context.Context, chatID int64, intro string) error {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🛒 Plans", "cmd:plans")),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Balance", "cmd:balance")),
	)
	msg := tgbotapi.NewMessage(chatID, intro)
	msg.ReplyMarkup = kb
	_, err := b.bot.Send(msg)
	return err
}

func (b *RealBot) sendPlansMenu(ctx context.Context, chatID int64) error {
	if b.plans == nil {
		return b.send(chatID, "No plans available.")
	}
	plans, err := b.plans.ListAll(ctx, repository.NoTX)
	if err != nil || len(plans) == 0 {
		return b.send(chatID, "No plans available.")
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(plans))
	for _, p := range plans {
		label := fmt.Sprintf("%s — %d ₽ (%d photo / %d video)", p.Name, p.PriceRUB, p.PhotoCredits, p.VideoCredits)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "buy:"+p.ID)))
	}
	msg := tgbotapi.NewMessage(chatID, "Available plans (tap to buy):")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, err = b.bot.Send(msg)
	return err
}

func (b *RealBot) sendBalance(ctx context.Context, chatID, userID int64) error {
	photo, video, err := b.ledger.ActiveRemaining(ctx, userID)
	if err != nil {
		return b.send(chatID, "Failed to get your balance.")
	}
	return b.send(chatID, fmt.Sprintf("Remaining credits:\n📷 photo: %d\n🎬 video: %d", photo, video))
}

func (b *RealBot) send(chatID int64, text string) error {
	_, err := b.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func (b *RealBot) allow(ctx context.Context, userID int64, command string) bool {
	if b.rateLimiter == nil {
		return true
	}
	limit := b.limitPerMin
	if limit <= 0 {
		limit = 20
	}
	allowed, err := b.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), limit, time.Minute)
	if err != nil {
		b.log.Warn().Err(err).Msg("rate limiter error")
		return true
	}
	return allowed
}
