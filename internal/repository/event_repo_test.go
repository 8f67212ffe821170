package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsec_dev_v1_202608/internal/model"
)

// ==================== 测试辅助 ====================

func setupEventTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	db.AutoMigrate(&model.SecurityEvent{})
	return db
}

func seedEvent(t *testing.T, repo EventRepository, category string, age time.Duration) {
	t.Helper()
	err := repo.Create(context.Background(), &model.SecurityEvent{
		ID:          uuid.NewString(),
		Category:    category,
		PrincipalID: 1,
		Detail:      "test",
		CreatedAt:   time.Now().Add(-age),
	})
	assert.NoError(t, err)
}

// ==================== 单元测试 ====================

func TestEventRepository_ListByCategory(t *testing.T) {
	db := setupEventTestDB(t)
	repo := NewEventRepository(db)

	seedEvent(t, repo, model.EventObjectBypass, 0)
	seedEvent(t, repo, model.EventObjectBypass, time.Hour)
	seedEvent(t, repo, model.EventRoleSubstitution, 0)

	// 全量
	events, total, err := repo.List(context.Background(), "", 1, 50)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, events, 3)

	// 按类别
	events, total, err = repo.List(context.Background(), model.EventObjectBypass, 1, 50)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, total)
	for _, e := range events {
		assert.Equal(t, model.EventObjectBypass, e.Category)
	}

	// 新事件在前
	assert.True(t, !events[0].CreatedAt.Before(events[1].CreatedAt))
}

func TestEventRepository_ListPagination(t *testing.T) {
	db := setupEventTestDB(t)
	repo := NewEventRepository(db)

	for i := 0; i < 5; i++ {
		seedEvent(t, repo, model.EventAuthFallback, time.Duration(i)*time.Minute)
	}

	events, total, err := repo.List(context.Background(), "", 2, 2)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Len(t, events, 2)
}

func TestEventRepository_DeleteBefore(t *testing.T) {
	db := setupEventTestDB(t)
	repo := NewEventRepository(db)

	seedEvent(t, repo, model.EventAuthFallback, 100*24*time.Hour)
	seedEvent(t, repo, model.EventAuthFallback, time.Hour)

	deleted, err := repo.DeleteBefore(context.Background(), time.Now().AddDate(0, 0, -90))
	assert.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	_, total, err := repo.List(context.Background(), "", 1, 50)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
}
