package database

import (
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ==================== 连接选项 ====================

// Options 连接池与 SQL 日志行为，由进程配置注入
type Options struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool // 打印每条 SQL，只在排查时打开
}

// normalized 补齐零值选项
func (o Options) normalized() Options {
	if o.MaxIdleConns <= 0 {
		o.MaxIdleConns = 5
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 50
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = time.Hour
	}
	return o
}

// logLevel SQL 日志默认只报慢查询和错误
func logLevel(logSQL bool) logger.LogLevel {
	if logSQL {
		return logger.Info
	}
	return logger.Warn
}

// ==================== 初始化 ====================

// InitDB 打开 PostgreSQL 连接并对给定模型自动迁移
// 连接失败直接终止进程：没有库这个服务没有任何可服务的东西
func InitDB(dsn string, opts Options, models ...interface{}) *gorm.DB {
	opts = opts.normalized()

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel(opts.LogSQL)),
	})
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("获取底层 SQL DB 失败: %v", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			log.Fatalf("自动迁移失败: %v", err)
		}
	}

	log.Printf("数据库已连接: idle=%d open=%d lifetime=%s", opts.MaxIdleConns, opts.MaxOpenConns, opts.ConnMaxLifetime)
	return db
}
