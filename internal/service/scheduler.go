package service

import (
	"context"
	"fmt"
	"time"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"
	"github-trend-scout/internal/port"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// specResolver 定时推送只需要跳过解析的那一半流水线
type specResolver interface {
	ResolveSpec(ctx context.Context, spec domain.SearchSpec) (*domain.Outcome, error)
}

// historySaveTimeout 写推送记录的独立超时
const historySaveTimeout = 5 * time.Second

// SchedulerOptions cron 表达式使用标准 5 段格式
type SchedulerOptions struct {
	Daily    string
	Weekly   string
	Location *time.Location
	Timeout  time.Duration // 单次推送的总超时
	Logger   *zerolog.Logger
}

// DigestScheduler 按 cron 定时生成日报/周报并推送
type DigestScheduler struct {
	resolver specResolver
	notifier port.Notifier
	history  port.DigestHistory // 可以为 nil

	cron     *cron.Cron
	entries  map[domain.DigestKind]cron.EntryID
	location *time.Location
	timeout  time.Duration

	nowFunc func() time.Time
	newID   func() string
	log     *zerolog.Logger
}

// NewDigestScheduler 注册日报和周报两个任务，表达式为空的任务不注册
func NewDigestScheduler(resolver specResolver, notifier port.Notifier, history port.DigestHistory, opts SchedulerOptions) (*DigestScheduler, error) {
	log := opts.Logger
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &DigestScheduler{
		resolver: resolver,
		notifier: notifier,
		history:  history,
		entries:  make(map[domain.DigestKind]cron.EntryID, 2),
		location: loc,
		timeout:  opts.Timeout,
		nowFunc:  time.Now,
		newID:    uuid.NewString,
		log:      log,
	}

	cl := cronLogger{log: log}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	jobs := []struct {
		kind domain.DigestKind
		expr string
	}{
		{domain.DigestDaily, opts.Daily},
		{domain.DigestWeekly, opts.Weekly},
	}
	for _, j := range jobs {
		if j.expr == "" {
			continue
		}
		kind := j.kind
		id, err := s.cron.AddFunc(j.expr, func() {
			if _, err := s.RunDigest(context.Background(), kind); err != nil {
				s.log.Error().Err(err).Str("kind", string(kind)).Msg("定时推送失败")
			}
		})
		if err != nil {
			return nil, fmt.Errorf("无效的 %s cron 表达式 %q: %w", kind, j.expr, err)
		}
		s.entries[kind] = id
	}

	return s, nil
}

// Start 在后台启动调度
func (s *DigestScheduler) Start() {
	s.cron.Start()
	for kind, id := range s.entries {
		s.log.Info().Str("kind", string(kind)).Time("next", s.cron.Entry(id).Next).Msg("定时推送已启动")
	}
}

// Stop 停止调度并等待正在执行的推送结束，ctx 到期则直接返回
func (s *DigestScheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Next 指定推送的下一次触发时间
func (s *DigestScheduler) Next(kind domain.DigestKind) (time.Time, bool) {
	id, ok := s.entries[kind]
	if !ok {
		return time.Time{}, false
	}
	return s.cron.Entry(id).Schedule.Next(s.nowFunc().In(s.location)), true
}

// RunDigest 立即执行一次推送：搜索、投递一次（不重试）、记录历史
func (s *DigestScheduler) RunDigest(ctx context.Context, kind domain.DigestKind) (*domain.DigestRecord, error) {
	spec, ok := kind.Spec()
	if !ok {
		return nil, common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("未知的推送类型: %s", kind))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	record := &domain.DigestRecord{
		ID:     s.newID(),
		Kind:   kind,
		SentAt: s.nowFunc().UTC(),
	}
	log := s.log.With().Str("kind", string(kind)).Str("digest_id", record.ID).Logger()

	runErr := s.deliver(ctx, spec, record)
	if runErr != nil {
		record.Error = runErr.Error()
		log.Error().Err(runErr).Msg("推送失败")
	} else {
		log.Info().Int("repos", record.RepoCount).Bool("degraded", record.Degraded).Msg("推送成功")
	}

	if s.history != nil {
		// 推送超时也要留下记录，所以不沿用推送的 ctx
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
		defer cancel()
		if err := s.history.Save(saveCtx, record); err != nil {
			log.Warn().Err(err).Msg("保存推送记录失败")
		}
	}

	return record, runErr
}

func (s *DigestScheduler) deliver(ctx context.Context, spec domain.SearchSpec, record *domain.DigestRecord) error {
	outcome, err := s.resolver.ResolveSpec(ctx, spec)
	if err != nil {
		return err
	}
	record.RepoCount = len(outcome.Repos)
	record.Degraded = outcome.Degraded

	if s.notifier == nil {
		return common.NewError(common.ErrCodeDeliveryFailed, "未配置推送渠道")
	}
	if err := s.notifier.Deliver(ctx, outcome.Text); err != nil {
		return err
	}
	record.Delivered = true
	return nil
}

// cronLogger 把 cron 的日志转到 zerolog
type cronLogger struct {
	log *zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
