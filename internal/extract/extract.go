// Package extract implements C8: the orchestrator that turns a cookie
// string and a requested set of week offsets into validated timetable
// payloads, fanning out week and homework fetches under their own
// concurrency limiters.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"

	"tgadapter/internal/apierr"
	"tgadapter/internal/concurrency"
	"tgadapter/internal/model"
	"tgadapter/internal/scrape/homework"
	"tgadapter/internal/scrape/offsets"
	"tgadapter/internal/scrape/week"
	"tgadapter/internal/session"
	"tgadapter/internal/teachers"
	"tgadapter/internal/transport"
)

var tracer = otel.Tracer("tgadapter/extract")

// Config tunes one Engine. The two *Initial/Min/Max triples are the
// per-request concurrency limiters' starting bounds; the two Forced
// ceilings are the fixed caps used when a caller disables dynamic
// adjustment for deterministic benchmarking.
type Config struct {
	BaseURL    string
	BasePath   string
	UdvalgPath string
	NotePath   string
	TeachersPath string

	RequestTimeout time.Duration
	MaxRetries     int
	BackoffFactor  time.Duration

	WeekFetchInitial, WeekFetchMin, WeekFetchMax             float64
	HomeworkFetchInitial, HomeworkFetchMin, HomeworkFetchMax float64
	ForcedWeekFetchCeiling, ForcedHomeworkFetchCeiling       float64

	TeacherFuzzyThreshold float64
	Dump                  transport.DumpWriter
}

// DefaultConfig applies the spec's stated defaults, leaving only the
// upstream base URL for the caller to supply.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:               baseURL,
		BasePath:              "/132n/",
		UdvalgPath:            "/i/udvalg.asp",
		NotePath:              "/i/note.asp",
		TeachersPath:          "/i/teachers.asp",
		RequestTimeout:        30 * time.Second,
		MaxRetries:            3,
		BackoffFactor:         500 * time.Millisecond,
		WeekFetchInitial:      5,
		WeekFetchMin:          1,
		WeekFetchMax:          50,
		HomeworkFetchInitial: 20,
		HomeworkFetchMin:     1,
		HomeworkFetchMax:     100,
		ForcedWeekFetchCeiling:     10,
		ForcedHomeworkFetchCeiling: 30,
		TeacherFuzzyThreshold:      0.92,
	}
}

// Engine runs the extraction pipeline. One Engine is constructed per
// process and shared across requests; its TeacherCache is the only
// cross-request mutable state (see teachers.Cache).
type Engine struct {
	cfg          Config
	teacherCache *teachers.Cache
}

// NewEngine builds an Engine. teacherCache may be shared across Engines
// that talk to the same upstream tenant.
func NewEngine(cfg Config, teacherCache *teachers.Cache) *Engine {
	return &Engine{cfg: cfg, teacherCache: teacherCache}
}

func (e *Engine) transportOptions() transport.Options {
	return transport.Options{
		BaseURL:       e.cfg.BaseURL,
		Timeout:       e.cfg.RequestTimeout,
		MaxRetries:    e.cfg.MaxRetries,
		BackoffFactor: e.cfg.BackoffFactor,
		Dump:          e.cfg.Dump,
	}
}

func (e *Engine) bootstrap(ctx context.Context, cookies map[string]string) (*transport.Client, *session.Session, error) {
	client, err := transport.New(e.transportOptions(), cookies)
	if err != nil {
		return nil, nil, apierr.Internal("failed to construct transport client", err)
	}
	boot := session.NewBootstrapper(client, e.cfg.BasePath)
	sess, err := boot.Bootstrap(ctx, cookies)
	if err != nil {
		return nil, nil, err
	}
	return client, sess, nil
}

func (e *Engine) weekLimiterOptions(force bool) concurrency.Options {
	opts := concurrency.DefaultOptions()
	opts.Min = e.cfg.WeekFetchMin
	opts.Max = e.cfg.WeekFetchMax
	opts.Initial = e.cfg.WeekFetchInitial
	if force {
		opts.Initial = e.cfg.ForcedWeekFetchCeiling
		opts.Max = e.cfg.ForcedWeekFetchCeiling
		opts.Disabled = true
	}
	return opts
}

func (e *Engine) homeworkLimiterOptions(force bool) concurrency.Options {
	opts := concurrency.DefaultOptions()
	opts.Min = e.cfg.HomeworkFetchMin
	opts.Max = e.cfg.HomeworkFetchMax
	opts.Initial = e.cfg.HomeworkFetchInitial
	if force {
		opts.Initial = e.cfg.ForcedHomeworkFetchCeiling
		opts.Max = e.cfg.ForcedHomeworkFetchCeiling
		opts.Disabled = true
	}
	return opts
}

func (e *Engine) fetchWeekHTML(ctx context.Context, client *transport.Client, sess *session.Session, studentID string, offset int, limiter *concurrency.Limiter) (string, error) {
	res, err := client.Post(ctx, e.cfg.UdvalgPath, map[string]string{
		"fname": "Henry",
		"q":     "stude",
		"v":     fmt.Sprintf("%d", offset),
		"lname": sess.LName,
		"timex": transport.NextTimer(),
		"id":    studentID,
	}, limiter)
	if err != nil {
		return "", err
	}
	if res.StatusCode >= 300 && res.StatusCode < 400 {
		return "", apierr.Auth(fmt.Sprintf("upstream redirected the week request for offset %d", offset))
	}
	return string(res.Body), nil
}

func (e *Engine) fetchHomework(ctx context.Context, client *transport.Client, sess *session.Session, lessonID string, limiter *concurrency.Limiter) (string, string, error) {
	res, err := client.Post(ctx, e.cfg.NotePath, map[string]string{
		"fname":       "Henry",
		"q":           lessonID,
		"MyFunktion":  "ReadNotesToLessonWithLessonRID",
		"lname":       sess.LName,
		"timer":       transport.NextTimer(),
	}, limiter)
	if err != nil {
		return "", "", err
	}
	id, text := homework.Parse(string(res.Body))
	return id, text, nil
}

// AvailableOffsets bootstraps a session and discovers the offsets the
// upstream's current (offset 0) week page advertises.
func (e *Engine) AvailableOffsets(ctx context.Context, cookies map[string]string, studentID string) ([]int, error) {
	ctx, span := tracer.Start(ctx, "extract:AvailableOffsets")
	defer span.End()

	client, sess, err := e.bootstrap(ctx, cookies)
	if err != nil {
		return nil, err
	}
	weekLimiter, err := concurrency.New(e.weekLimiterOptions(false))
	if err != nil {
		return nil, apierr.Internal("failed to construct week limiter", err)
	}
	html, err := e.fetchWeekHTML(ctx, client, sess, studentID, 0, weekLimiter)
	if err != nil {
		return nil, err
	}
	return offsets.Discover(html), nil
}

// Week fetches and validates exactly one offset. Unlike Weeks, failures
// here surface directly rather than being dropped.
func (e *Engine) Week(ctx context.Context, cookies map[string]string, studentID string, offset int, force bool) (*model.TimetableData, error) {
	ctx, span := tracer.Start(ctx, "extract:Week")
	defer span.End()

	client, sess, err := e.bootstrap(ctx, cookies)
	if err != nil {
		return nil, err
	}

	teacherMap := e.teacherCache.Get(ctx, client, sess, nil)

	weekLimiter, err := concurrency.New(e.weekLimiterOptions(force))
	if err != nil {
		return nil, apierr.Internal("failed to construct week limiter", err)
	}
	homeworkLimiter, err := concurrency.New(e.homeworkLimiterOptions(force))
	if err != nil {
		return nil, apierr.Internal("failed to construct homework limiter", err)
	}

	return e.buildWeek(ctx, client, sess, teacherMap, studentID, offset, weekLimiter, homeworkLimiter)
}

// Weeks fetches and validates several offsets concurrently. A per-offset
// failure is logged and the offset dropped; the batch only fails wholesale
// if bootstrap itself fails.
func (e *Engine) Weeks(ctx context.Context, cookies map[string]string, studentID string, requestedOffsets []int, force bool) ([]model.TimetableData, error) {
	ctx, span := tracer.Start(ctx, "extract:Weeks")
	defer span.End()

	client, sess, err := e.bootstrap(ctx, cookies)
	if err != nil {
		return nil, err
	}

	teacherMap := e.teacherCache.Get(ctx, client, sess, nil)

	weekLimiter, err := concurrency.New(e.weekLimiterOptions(force))
	if err != nil {
		return nil, apierr.Internal("failed to construct week limiter", err)
	}
	homeworkLimiter, err := concurrency.New(e.homeworkLimiterOptions(force))
	if err != nil {
		return nil, apierr.Internal("failed to construct homework limiter", err)
	}
	weekGate := concurrency.NewGate(weekLimiter)

	var (
		mu      sync.Mutex
		results []model.TimetableData
		wg      sync.WaitGroup
	)

	for _, offset := range requestedOffsets {
		offset := offset
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := weekGate.Acquire(ctx)
			if err != nil {
				return
			}
			defer release()

			data, err := e.buildWeek(ctx, client, sess, teacherMap, studentID, offset, weekLimiter, homeworkLimiter)
			if err != nil {
				slog.Warn("dropping offset after fetch/validation failure", "offset", offset, "error", err)
				return
			}
			mu.Lock()
			results = append(results, *data)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slog.Info("weeks extraction finished",
		slog.Group("offsets",
			"requested", len(requestedOffsets),
			"succeeded", len(results),
			"dropped", len(requestedOffsets)-len(results),
		),
	)

	sort.Slice(results, func(i, j int) bool {
		return weekSortKey(results[i]) < weekSortKey(results[j])
	})
	return results, nil
}

func weekSortKey(d model.TimetableData) int {
	if d.WeekInfo.WeekNumber <= 0 {
		return math.MaxInt32
	}
	return d.WeekInfo.WeekNumber
}

// buildWeek fetches one offset's week HTML, scrapes it, fans out homework
// fetches for any flagged lessons, merges the results, and validates.
func (e *Engine) buildWeek(ctx context.Context, client *transport.Client, sess *session.Session, teacherMap teachers.Map, studentID string, offset int, weekLimiter, homeworkLimiter *concurrency.Limiter) (*model.TimetableData, error) {
	html, err := e.fetchWeekHTML(ctx, client, sess, studentID, offset, weekLimiter)
	if err != nil {
		return nil, err
	}

	parsed := week.Parse(html, teacherMap, e.cfg.TeacherFuzzyThreshold)
	if parsed.NoData {
		return nil, apierr.Validation(fmt.Sprintf("offset %d: no timetable table found", offset))
	}

	homeworkByLessonID := e.fetchHomeworkMap(ctx, client, sess, parsed.HomeworkIDs, homeworkLimiter)
	for i, lesson := range parsed.Lessons {
		if lesson.LessonID == nil {
			continue
		}
		if text, ok := homeworkByLessonID[*lesson.LessonID]; ok && text != "" {
			t := text
			parsed.Lessons[i].Description = &t
		}
	}

	data := &model.TimetableData{
		StudentInfo: parsed.StudentInfo,
		WeekInfo:    parsed.WeekInfo,
		Events:      parsed.Lessons,
	}
	if err := model.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

func (e *Engine) fetchHomeworkMap(ctx context.Context, client *transport.Client, sess *session.Session, lessonIDs []string, limiter *concurrency.Limiter) map[string]string {
	if len(lessonIDs) == 0 {
		return nil
	}

	gate := concurrency.NewGate(limiter)
	var (
		mu  sync.Mutex
		out = make(map[string]string, len(lessonIDs))
		wg  sync.WaitGroup
	)

	for _, id := range lessonIDs {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()

			release, err := gate.Acquire(ctx)
			if err != nil {
				return
			}
			defer release()

			gotID, text, err := e.fetchHomework(ctx, client, sess, id, limiter)
			if err != nil {
				slog.Warn("homework fetch failed, omitting note", "lesson_id", id, "error", err)
				return
			}
			if gotID == "" || text == "" {
				return
			}
			mu.Lock()
			out[gotID] = text
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
