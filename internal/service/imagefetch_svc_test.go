package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
)

// ==================== 测试辅助 ====================

func setupImageFetchTest(t *testing.T, sink AuditSink, allowHosts []string) (*ImageFetchService, *gorm.DB, int64) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("连接测试数据库失败: %v", err)
	}
	db.AutoMigrate(&model.Item{})

	item := &model.Item{Name: "T恤", PriceAmount: 1000, OwnerID: 2}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("插入商品失败: %v", err)
	}

	repo := repository.NewItemRepository(db)
	svc := NewImageFetchService(repo, NewAuthzService(sink), sink, allowHosts)
	return svc, db, item.ID
}

var testItemOwner = &model.Principal{ID: 2, Role: model.RoleStaff}

// ==================== 严格 SSRF ====================

func TestImageFetch_StrictRejectsPlainHTTP(t *testing.T) {
	svc, _, itemID := setupImageFetchTest(t, NopAuditSink{}, []string{"cdn.example.com"})
	pol := policy.AllStrict()

	err := svc.AttachImage(context.Background(), testItemOwner, itemID, "http://cdn.example.com/a.png", pol)
	if !errors.Is(err, ErrURLNotAllowed) {
		t.Fatalf("err = %v, want ErrURLNotAllowed", err)
	}
}

func TestImageFetch_StrictRejectsUnlistedHost(t *testing.T) {
	svc, _, itemID := setupImageFetchTest(t, NopAuditSink{}, []string{"cdn.example.com"})
	pol := policy.AllStrict()

	err := svc.AttachImage(context.Background(), testItemOwner, itemID, "https://169.254.169.254/meta", pol)
	if !errors.Is(err, ErrURLNotAllowed) {
		t.Fatalf("err = %v, want ErrURLNotAllowed", err)
	}
}

func TestImageFetch_RejectsMalformedURL(t *testing.T) {
	svc, _, itemID := setupImageFetchTest(t, NopAuditSink{}, nil)

	err := svc.AttachImage(context.Background(), testItemOwner, itemID, "::::not-a-url", policy.AllPermissive())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

// ==================== 宽松 SSRF ====================

func TestImageFetch_PermissiveFetchesAnyHostWithAudit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	sink := &recordingSink{}
	svc, db, itemID := setupImageFetchTest(t, sink, []string{"cdn.example.com"})
	pol := policy.AllPermissive()

	// 白名单外的 http 主机照抓
	if err := svc.AttachImage(context.Background(), testItemOwner, itemID, srv.URL+"/a.png", pol); err != nil {
		t.Fatalf("宽松策略应放行: %v", err)
	}
	if sink.count(model.EventSSRFBypass) != 1 {
		t.Errorf("ssrf_bypass 事件 = %d, want 1", sink.count(model.EventSSRFBypass))
	}

	var item model.Item
	db.First(&item, itemID)
	if item.ImageURL != srv.URL+"/a.png" {
		t.Errorf("image_url = %s", item.ImageURL)
	}
}

func TestImageFetch_RejectsNonImageResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	svc, _, itemID := setupImageFetchTest(t, NopAuditSink{}, nil)

	err := svc.AttachImage(context.Background(), testItemOwner, itemID, srv.URL+"/page", policy.AllPermissive())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}
