package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github-trend-scout/internal/common"
	"github-trend-scout/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 历史查询的默认和最大条数
const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
)

// PostgresRepo 实现了 port.DigestHistory 接口
type PostgresRepo struct {
	db *gorm.DB
}

// 认证失败或库不存在时重试没有意义
var nonRetryablePgCodes = map[string]struct{}{
	"28000": {}, // invalid_authorization_specification
	"28P01": {}, // invalid_password
	"3D000": {}, // invalid_catalog_name
}

// retryableConnectError 只有网络类的连接失败才值得重试
func retryableConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		_, fatal := nonRetryablePgCodes[pgErr.Code]
		return !fatal
	}
	return true
}

// NewPostgresRepo 连接数据库（失败时指数退避重试）并自动迁移 digest_records 表
// DSN 无法解析或认证失败时立即返回
func NewPostgresRepo(ctx context.Context, dsn string, log *zerolog.Logger, retryOpts ...common.Option) (*PostgresRepo, error) {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	opts := append([]common.Option{
		common.WithMaxRetries(5),
		common.WithInitialDelay(time.Second),
		common.WithMaxDelay(15 * time.Second),
		common.WithMultiplier(2),
		common.WithRetryIf(retryableConnectError),
		common.WithOnRetry(func(attempt int, delay time.Duration, err error) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("连接数据库失败，稍后重试")
		}),
	}, retryOpts...)

	var db *gorm.DB
	err := common.Do(ctx, func(ctx context.Context) error {
		var openErr error
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		var parseErr *pgconn.ParseConfigError
		if errors.As(openErr, &parseErr) {
			return common.Permanent(openErr)
		}
		return openErr
	}, opts...)
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "连接数据库失败", err)
	}

	// 自动迁移，表结构变化时自动更新
	if err := db.WithContext(ctx).AutoMigrate(&domain.DigestRecord{}); err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "数据库迁移失败", err)
	}

	return &PostgresRepo{db: db}, nil
}

// NewWithDB 复用已有连接，不做迁移
func NewWithDB(db *gorm.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

// Save 写入一条推送记录
func (r *PostgresRepo) Save(ctx context.Context, record *domain.DigestRecord) error {
	if record == nil || record.ID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "推送记录缺少 ID")
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return common.WrapError(common.ErrCodeDatabase, fmt.Sprintf("保存推送记录 %s 失败", record.ID), err)
	}
	return nil
}

// Recent 按发送时间倒序返回最近的推送记录
func (r *PostgresRepo) Recent(ctx context.Context, limit int) ([]*domain.DigestRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultRecentLimit
	case limit > MaxRecentLimit:
		limit = MaxRecentLimit
	}

	var records []*domain.DigestRecord
	err := r.db.WithContext(ctx).
		Order("sent_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询推送记录失败", err)
	}
	return records, nil
}

// Close 关闭底层连接池
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
