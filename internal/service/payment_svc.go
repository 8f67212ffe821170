package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// ==================== PaymentGateway 支付网关 ====================

// PaymentGateway 外部支付桩
// 严格业务流策略下 pay 必须走它并带超时；宽松策略可被客户端断言短路
type PaymentGateway interface {
	Charge(ctx context.Context, amountCents int64, currency string) error
}

// ==================== StubGateway 进程内概率桩 ====================

// StubGateway 按成功率随机放行的进程内桩
type StubGateway struct {
	successRate float64

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewStubGateway 创建概率桩，rate 取值 [0,1]
func NewStubGateway(rate float64) *StubGateway {
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	return &StubGateway{
		successRate: rate,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (g *StubGateway) Charge(ctx context.Context, amountCents int64, currency string) error {
	// 尊重调用方超时
	if err := ctx.Err(); err != nil {
		return err
	}
	if amountCents < 0 {
		return fmt.Errorf("非法扣款金额: %d", amountCents)
	}

	g.mu.Lock()
	roll := g.rnd.Float64()
	g.mu.Unlock()

	if roll < g.successRate {
		return nil
	}
	return ErrPaymentDeclined
}

// ==================== RemoteGateway 远端网关 ====================

// RemoteGateway 通过 HTTP 调远端支付服务（演示环境）
type RemoteGateway struct {
	client *resty.Client
	url    string
}

// NewRemoteGateway 创建远端网关客户端
func NewRemoteGateway(url string, timeout time.Duration) *RemoteGateway {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRetryCount(0) // 扣款不重试，超时即按失败处理
	return &RemoteGateway{client: client, url: url}
}

func (g *RemoteGateway) Charge(ctx context.Context, amountCents int64, currency string) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"amount":   amountCents,
			"currency": currency,
		}).
		Post(g.url)
	if err != nil {
		return fmt.Errorf("支付网关请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: status %d", ErrPaymentDeclined, resp.StatusCode())
	}
	return nil
}

// ==================== 错误定义 ====================

var (
	ErrPaymentDeclined = errors.New("支付被拒绝")
)
