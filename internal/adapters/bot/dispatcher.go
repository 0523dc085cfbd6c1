package bot

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"eshop-prices-bot/internal/domain"
	"eshop-prices-bot/internal/infra/metrics"
	"eshop-prices-bot/internal/usecase/pricecache"
	"eshop-prices-bot/internal/usecase/promo"
	"eshop-prices-bot/internal/usecase/sessions"
)

// UpdateFeed — long poll апдейтов с указанным offset.
type UpdateFeed interface {
	Updates(ctx context.Context, offset, timeoutSeconds int) ([]tgbotapi.Update, error)
}

// DispatcherOptions собирает зависимости и настройки диспетчера.
type DispatcherOptions struct {
	Feed        UpdateFeed
	Handler     *Handler
	Store       domain.StateStore
	Cache       *pricecache.Cache
	Sessions    *sessions.Registry
	Notifier    *promo.Notifier
	Log         zerolog.Logger
	PollTimeout time.Duration
	// TaskInterval — период запуска промо-обхода и обслуживания кэша.
	TaskInterval time.Duration
}

// Dispatcher крутит главный цикл: long poll, маршрутизация апдейтов,
// продвижение чекпоинта, снапшот после каждой пачки и кооперативный
// запуск плановых задач. Чекпоинт продвигается только после возврата
// обработчика: падение посреди обработки ведёт к повтору апдейта, а
// не к его потере.
type Dispatcher struct {
	feed     UpdateFeed
	handler  *Handler
	store    domain.StateStore
	cache    *pricecache.Cache
	sessions *sessions.Registry
	notifier *promo.Notifier
	log      zerolog.Logger

	pollTimeout  time.Duration
	taskInterval time.Duration

	checkpoint int
	nextTasks  time.Time
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 300 * time.Second
	}
	if opts.TaskInterval <= 0 {
		opts.TaskInterval = 12 * time.Hour
	}
	return &Dispatcher{
		feed:         opts.Feed,
		handler:      opts.Handler,
		store:        opts.Store,
		cache:        opts.Cache,
		sessions:     opts.Sessions,
		notifier:     opts.Notifier,
		log:          opts.Log,
		pollTimeout:  opts.PollTimeout,
		taskInterval: opts.TaskInterval,
	}
}

// Run восстанавливает состояние и обрабатывает апдейты до отмены
// контекста. Отмена замечается между итерациями цикла и завершает
// работу финальным снапшотом.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.restore(ctx); err != nil {
		return err
	}
	d.nextTasks = time.Now().Add(d.taskInterval)

	for {
		select {
		case <-ctx.Done():
			d.log.Info().Msg("остановка диспетчера, финальный снапшот")
			d.snapshot()
			return nil
		default:
		}

		d.runDueTasks(ctx)

		updates, err := d.feed.Updates(ctx, d.offset(), int(d.pollTimeout/time.Second))
		if err != nil {
			d.log.Error().Err(err).Msg("long poll не удался")
			time.Sleep(time.Second)
			continue
		}

		for _, upd := range updates {
			d.dispatch(ctx, upd)
			// чекпоинт — строго после обработчика
			d.checkpoint = upd.UpdateID
		}

		d.snapshot()
	}
}

// offset возвращает эксклюзивную нижнюю границу опроса.
func (d *Dispatcher) offset() int {
	if d.checkpoint == 0 {
		return 0
	}
	return d.checkpoint + 1
}

// dispatch классифицирует апдейт и передаёт его обработчику.
// Паника в обработчике изолируется: чекпоинт всё равно продвинется.
func (d *Dispatcher) dispatch(ctx context.Context, upd tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().Int("update", upd.UpdateID).Msgf("паника при обработке апдейта: %v", r)
		}
	}()

	switch {
	case upd.Message != nil:
		metrics.UpdatesTotal.WithLabelValues("message").Inc()
		d.handler.HandleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		metrics.UpdatesTotal.WithLabelValues("callback").Inc()
		d.handler.HandleCallback(ctx, upd.CallbackQuery)
	default:
		metrics.UpdatesTotal.WithLabelValues("unrecognized").Inc()
		d.log.Info().Int("update", upd.UpdateID).Msg("апдейт неизвестного типа, пропускаем")
	}
}

func (d *Dispatcher) runDueTasks(ctx context.Context) {
	if time.Now().Before(d.nextTasks) {
		return
	}
	d.notifier.Sweep(ctx)
	if evicted := d.cache.Maintain(); evicted > 0 {
		d.log.Info().Int("evicted", evicted).Msg("обслуживание кэша завершено")
	}
	d.nextTasks = time.Now().Add(d.taskInterval)
}

func (d *Dispatcher) restore(ctx context.Context) error {
	snap, err := d.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("восстановление состояния: %w", err)
	}
	d.checkpoint = snap.Checkpoint
	d.sessions.Restore(snap.Sessions)
	d.cache.Restore(snap.Cache)
	d.log.Info().Int("checkpoint", snap.Checkpoint).
		Int("sessions", len(snap.Sessions)).
		Int("cached", len(snap.Cache)).
		Msg("состояние восстановлено")
	return nil
}

// snapshot переписывает всё персистентное состояние. Ошибка записи не
// фатальна: снапшот повторится после следующей пачки.
func (d *Dispatcher) snapshot() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap := domain.Snapshot{
		Checkpoint: d.checkpoint,
		Sessions:   d.sessions.Snapshot(),
		Cache:      d.cache.Snapshot(),
	}
	if err := d.store.Save(ctx, snap); err != nil {
		metrics.SnapshotErrors.Inc()
		d.log.Error().Err(err).Msg("не удалось сохранить снапшот")
	}
}
