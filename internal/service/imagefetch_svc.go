package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"shopsec_dev_v1_202608/internal/model"
	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/repository"
	"shopsec_dev_v1_202608/pkg/utils"
)

// ==================== ImageFetchService 商品图抓取 ====================

// ImageFetchService 按 URL 给商品挂图
// 严格 SSRF 策略：只允许 https + 主机在白名单内
// 宽松策略：任意 URL 照抓（内网探测演示），白名单外记一条事件
type ImageFetchService struct {
	itemRepo   repository.ItemRepository
	authz      *AuthzService
	sink       AuditSink
	client     *resty.Client
	allowHosts map[string]bool
}

// NewImageFetchService 创建抓图服务
func NewImageFetchService(itemRepo repository.ItemRepository, authz *AuthzService, sink AuditSink, allowHosts []string) *ImageFetchService {
	client := resty.New()
	client.SetTimeout(10 * time.Second)
	client.SetRetryCount(2)

	allowed := make(map[string]bool, len(allowHosts))
	for _, h := range allowHosts {
		allowed[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return &ImageFetchService{
		itemRepo:   itemRepo,
		authz:      authz,
		sink:       sink,
		client:     client,
		allowHosts: allowed,
	}
}

// AttachImage 抓取 URL 并挂到商品上（对象级网关：商品属主）
func (s *ImageFetchService) AttachImage(ctx context.Context, p *model.Principal, itemID int64, rawURL string, pol *policy.Config) error {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("查询商品失败: %w", err)
	}
	if item == nil {
		return ErrItemNotFound
	}
	if d := s.authz.CheckObject(p, item.ID, item.OwnerID, pol); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrAccessDenied, d.Reason)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: 非法 URL", ErrValidation)
	}

	host := strings.ToLower(u.Hostname())
	if pol.SSRFStrict {
		if u.Scheme != "https" {
			return fmt.Errorf("%w: 只允许 https", ErrURLNotAllowed)
		}
		if !s.allowHosts[host] {
			return fmt.Errorf("%w: 主机 %s 不在白名单", ErrURLNotAllowed, host)
		}
	} else if !s.allowHosts[host] {
		s.sink.Emit(model.SecurityEvent{
			Category:    model.EventSSRFBypass,
			PrincipalID: principalID(p),
			TargetID:    item.ID,
			Detail:      fmt.Sprintf("抓取白名单外主机 %s", host),
		})
	}

	// 同一 URL 短期内抓过就不再出网
	if _, hit := utils.GetCache("imagefetch:" + rawURL); !hit {
		resp, err := s.client.R().SetContext(ctx).Get(rawURL)
		if err != nil {
			return fmt.Errorf("抓取失败: %w", err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("抓取失败: status %d", resp.StatusCode())
		}
		if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
			return fmt.Errorf("%w: 响应不是图片 (%s)", ErrValidation, ct)
		}
		utils.SetCache("imagefetch:"+rawURL, "ok")
	}

	return s.itemRepo.UpdateFields(ctx, item.ID, map[string]interface{}{
		"image_url": rawURL,
	})
}

// ==================== 错误定义 ====================

var ErrURLNotAllowed = errors.New("该 URL 不允许抓取")
