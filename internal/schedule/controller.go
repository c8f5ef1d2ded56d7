package schedule

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"timetable-backend/config"
	"timetable-backend/internal/model"
	"timetable-backend/internal/parse"
	"timetable-backend/internal/view"
)

const defaultGracePeriod = 5 * time.Second

// Fetcher retrieves the raw upstream payload for a date range.
type Fetcher interface {
	Fetch(ctx context.Context, identity string, r model.DateRange) ([]byte, error)
}

// Cache is the per-identity entry store.
type Cache interface {
	Read(ctx context.Context, identity string) ([]model.LessonRecord, bool)
	Write(ctx context.Context, identity string, records []model.LessonRecord) error
	ListIdentitiesWithData(ctx context.Context) []string
}

// MarginSource yields the user's days margin preference.
type MarginSource interface {
	DaysMargin(ctx context.Context) int
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Fetcher Fetcher
	Cache   Cache
	Margin  MarginSource
	// OnBanner is called when the banner becomes visible. Optional.
	OnBanner func(identity string, n Notification)
}

type direction int

const (
	forward direction = iota
	backward
)

// Controller owns the in-memory schedule of one identity and keeps it in
// sync with the entry store and the upstream provider.
type Controller struct {
	deps    Deps
	grace   time.Duration
	reserve int
	loc     *time.Location
	now     func() time.Time
	log     *zap.Logger

	mu         sync.Mutex
	identity   string
	gen        uint64
	opCtx      context.Context
	cancel     context.CancelFunc
	state      State
	data       []model.LessonRecord
	stable     []model.LessonRecord
	filter     string
	hasCache   bool
	window     model.DateRange
	hasWindow  bool
	extending  bool
	positions  map[string]int
	scroll     string
	notice     *Notification
	pending    *Notification
	graceTimer *time.Timer
	graceSeq   uint64
	graceDone  bool
	subs       map[int]chan Snapshot
	nextSub    int
	closed     bool
	done       chan struct{}
	wg         sync.WaitGroup
}

// New creates an idle controller with no identity.
func New(deps Deps, cfg config.SyncConfig, log *zap.Logger) *Controller {
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = defaultGracePeriod
	}
	reserve := cfg.ExtensionMarginReserve
	if reserve < 0 {
		reserve = 0
	}
	opCtx, cancel := context.WithCancel(context.Background())
	return &Controller{
		deps:      deps,
		grace:     grace,
		reserve:   reserve,
		loc:       cfg.Location(),
		now:       time.Now,
		log:       log.Named("schedule"),
		opCtx:     opCtx,
		cancel:    cancel,
		positions: make(map[string]int),
		subs:      make(map[int]chan Snapshot),
		done:      make(chan struct{}),
	}
}

// Identity returns the current identity, "" when unset.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetIdentity switches the controller to identity and starts its initial
// load. Work issued for the previous identity is discarded. An empty
// identity resets the controller to Idle and returns ErrIdentityUnset.
func (c *Controller) SetIdentity(ctx context.Context, identity string) error {
	identity = model.NormalizeIdentity(identity)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.resetLocked()
	c.identity = identity
	c.publishLocked()
	c.mu.Unlock()

	if identity == "" {
		return ErrIdentityUnset
	}
	return c.Load(ctx)
}

// Load renders the cached snapshot for the current identity, if any, and
// refreshes the default window from upstream in the background. ctx bounds
// only the cache read; the refresh lives until the next reload, identity
// change or Close.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	identity := c.identity
	if identity == "" {
		c.mu.Unlock()
		return ErrIdentityUnset
	}
	c.resetLocked()
	gen := c.gen
	c.state = InitialLoading
	c.publishLocked()
	c.mu.Unlock()

	margin := c.deps.Margin.DaysMargin(ctx)
	today := model.Day(c.now().In(c.loc))
	window, err := model.NewDateRange(today, today.AddDate(0, 0, margin))
	if err != nil {
		return err
	}
	cached, found := c.deps.Cache.Read(ctx, identity)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return nil
	}
	c.window, c.hasWindow = window, true
	if found {
		c.hasCache = true
		c.setDataLocked(cached)
		c.state = Ready
		c.publishLocked()
		c.state = RefreshingInBackground
	}
	c.armGraceLocked(gen)
	c.publishLocked()

	opCtx := c.opCtx
	c.wg.Add(1)
	go c.refresh(opCtx, gen, identity, window)
	return nil
}

func (c *Controller) refresh(ctx context.Context, gen uint64, identity string, window model.DateRange) {
	defer c.wg.Done()

	records, err := c.fetchRange(ctx, identity, window)
	var offline []string
	if err != nil {
		offline = c.offlineIdentities(ctx, identity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.log.Debug("discarding stale refresh", zap.String("identity", identity))
		return
	}
	c.state = Ready
	if err != nil {
		c.failLocked(identity, err, offline)
		c.publishLocked()
		return
	}

	c.succeedLocked()
	if !model.EqualRecords(c.data, records) {
		c.setDataLocked(records)
		c.persistLocked(ctx, identity)
	}
	c.publishLocked()
}

// LoadMore appends the range right after the window end. anchor names the
// position the view returns to once the data is in.
func (c *Controller) LoadMore(ctx context.Context, anchor string) error {
	return c.extend(ctx, forward, anchor)
}

// LoadPreviousWeek prepends the range right before the window start.
func (c *Controller) LoadPreviousWeek(ctx context.Context) error {
	return c.extend(ctx, backward, "")
}

func (c *Controller) extend(ctx context.Context, dir direction, anchor string) error {
	days := c.extensionDays(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	identity := c.identity
	if identity == "" {
		c.mu.Unlock()
		return ErrIdentityUnset
	}
	if c.extending || c.state != Ready || !c.hasWindow {
		c.mu.Unlock()
		return ErrBusy
	}
	gen := c.gen

	var r model.DateRange
	if dir == forward {
		start := c.window.End.AddDate(0, 0, 1)
		r = model.DateRange{Start: start, End: start.AddDate(0, 0, days)}
		c.state = ExtendingForward
	} else {
		end := c.window.Start.AddDate(0, 0, -1)
		r = model.DateRange{Start: end.AddDate(0, 0, -days), End: end}
		c.state = ExtendingBackward
	}
	c.extending = true
	c.armGraceLocked(gen)
	c.publishLocked()
	opCtx := c.opCtx
	c.mu.Unlock()

	ctx, stop := context.WithCancel(ctx)
	defer stop()
	defer context.AfterFunc(opCtx, stop)()

	records, err := c.fetchRange(ctx, identity, r)
	var offline []string
	if err != nil {
		offline = c.offlineIdentities(ctx, identity)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.log.Debug("discarding stale extension", zap.String("identity", identity), zap.Stringer("range", r))
		return nil
	}
	c.extending = false
	c.state = Ready
	if err != nil {
		if errors.Is(err, context.Canceled) {
			c.publishLocked()
			return err
		}
		c.failLocked(identity, err, offline)
		c.publishLocked()
		return nil
	}

	c.succeedLocked()
	if dir == forward {
		c.setDataLocked(append(model.CloneRecords(c.data), records...))
		c.window.End = r.End
		c.scroll = anchor
	} else {
		boundary := model.FormatDate(c.window.Start)
		c.setDataLocked(append(model.CloneRecords(records), c.data...))
		c.window.Start = r.Start
		c.scroll = c.nearestPositionLocked(boundary)
	}
	c.persistLocked(ctx, identity)
	c.publishLocked()
	return nil
}

// extensionDays is the span of one extension request past its first day.
func (c *Controller) extensionDays(ctx context.Context) int {
	days := c.deps.Margin.DaysMargin(ctx) - c.reserve
	if days < 1 {
		days = 1
	}
	return days
}

// SetFilter narrows the visible records to the days having a lesson whose
// name contains text. An empty text restores the unfiltered list.
func (c *Controller) SetFilter(text string) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" {
		c.filter = ""
		c.stable = nil
	} else {
		if c.stable == nil {
			c.stable = model.CloneRecords(c.data)
		}
		c.filter = text
	}
	c.publishLocked()
}

// RecordPosition stores the view offset of a date heading.
func (c *Controller) RecordPosition(date string, offset int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.positions[date] = offset
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only see the most recent one. The returned func
// unsubscribes.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(sub)
			}
		})
	}
}

// Close cancels outstanding work, stops timers and closes subscriptions.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.gen++
	c.cancel()
	c.stopGraceLocked()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Controller) fetchRange(ctx context.Context, identity string, r model.DateRange) ([]model.LessonRecord, error) {
	raw, err := c.deps.Fetcher.Fetch(ctx, identity, r)
	if err != nil {
		return nil, err
	}
	return parse.Normalize(raw, identity)
}

func (c *Controller) offlineIdentities(ctx context.Context, current string) []string {
	var out []string
	for _, id := range c.deps.Cache.ListIdentitiesWithData(ctx) {
		if id != current {
			out = append(out, id)
		}
	}
	return out
}

// resetLocked starts a new generation: in-flight work is cancelled and its
// results will be dropped.
func (c *Controller) resetLocked() {
	c.gen++
	c.cancel()
	c.opCtx, c.cancel = context.WithCancel(context.Background())
	c.stopGraceLocked()
	c.state = Idle
	c.data = nil
	c.stable = nil
	c.filter = ""
	c.hasCache = false
	c.hasWindow = false
	c.window = model.DateRange{}
	c.extending = false
	c.positions = make(map[string]int)
	c.scroll = ""
	c.notice = nil
	c.pending = nil
}

func (c *Controller) setDataLocked(records []model.LessonRecord) {
	if records == nil {
		records = []model.LessonRecord{}
	}
	c.data = records
	if c.filter != "" {
		c.stable = model.CloneRecords(records)
	}
}

func (c *Controller) persistLocked(ctx context.Context, identity string) {
	if err := c.deps.Cache.Write(ctx, identity, c.data); err != nil {
		c.log.Warn("failed to persist schedule", zap.String("identity", identity), zap.Error(err))
		return
	}
	c.hasCache = true
}

// armGraceLocked starts the banner delay unless it is already running or
// has already elapsed for the current failure streak.
func (c *Controller) armGraceLocked(gen uint64) {
	if c.graceTimer != nil || c.graceDone {
		return
	}
	c.graceSeq++
	seq := c.graceSeq
	c.graceTimer = time.AfterFunc(c.grace, func() { c.graceElapsed(gen, seq) })
}

// graceElapsed runs when the timer armed as seq fires. A timer that was
// stopped or replaced after it had already fired finds a newer seq and
// does nothing.
func (c *Controller) graceElapsed(gen, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen || c.graceSeq != seq || c.closed {
		return
	}
	c.graceTimer = nil
	c.graceDone = true
	if c.pending != nil {
		c.showLocked()
		c.publishLocked()
	}
}

func (c *Controller) stopGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
	c.graceSeq++
	c.graceDone = false
}

func (c *Controller) failLocked(identity string, err error, offline []string) {
	c.log.Warn("schedule fetch failed", zap.String("identity", identity), zap.Error(err))
	c.pending = newNotification(c.hasCache || len(c.data) > 0, offline)
	if c.graceDone {
		c.showLocked()
	}
}

func (c *Controller) showLocked() {
	visible := c.notice != nil
	c.notice = c.pending
	if !visible && c.deps.OnBanner != nil {
		identity, n := c.identity, *c.notice
		go c.deps.OnBanner(identity, n)
	}
}

func (c *Controller) succeedLocked() {
	c.stopGraceLocked()
	c.pending = nil
	c.notice = nil
}

// nearestPositionLocked returns date when a position was recorded for it,
// otherwise the closest recorded date, otherwise the closest loaded date.
func (c *Controller) nearestPositionLocked(date string) string {
	if _, ok := c.positions[date]; ok {
		return date
	}
	candidates := make([]string, 0, len(c.positions))
	for d := range c.positions {
		candidates = append(candidates, d)
	}
	if len(candidates) == 0 {
		candidates = view.SortedDates(view.GroupByDate(c.data))
	}
	if nearest, ok := view.NearestDate(date, candidates); ok {
		return nearest
	}
	return date
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		Identity:     c.identity,
		Generation:   c.gen,
		State:        c.state,
		Filter:       c.filter,
		ScrollTarget: c.scroll,
		ScrollOffset: c.positions[c.scroll],
	}
	if c.filter != "" {
		snap.Records = view.FilterBySubjectDates(c.stable, c.filter)
	} else {
		snap.Records = model.CloneRecords(c.data)
	}
	if snap.Records == nil {
		snap.Records = []model.LessonRecord{}
	}
	if c.hasWindow {
		snap.WindowStart = model.FormatDate(c.window.Start)
		snap.WindowEnd = model.FormatDate(c.window.End)
	}
	if c.notice != nil {
		n := *c.notice
		n.OfflineIdentities = append([]string(nil), c.notice.OfflineIdentities...)
		snap.Notification = &n
	}
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
