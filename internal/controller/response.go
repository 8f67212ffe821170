package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/policy"
	"shopsec_dev_v1_202608/internal/service"
)

// ==================== 统一响应 ====================

// respondOK 成功响应
func respondOK(ctx *gin.Context, message string, data interface{}) {
	ctx.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": message,
		"data":    data,
	})
}

// respondError 按错误分类映射状态码
// 加固姿态下 5xx 只回一句通用文案；宽松姿态刻意回显内部错误细节
func respondError(ctx *gin.Context, err error, pol *policy.Config) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, service.ErrAuthInvalid), errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrAccessDenied), errors.Is(err, service.ErrURLNotAllowed):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidCoupon),
		errors.Is(err, service.ErrEmailExists):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound), errors.Is(err, service.ErrItemNotFound),
		errors.Is(err, service.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrCouponAlreadyApplied):
		status = http.StatusConflict
	case errors.Is(err, service.ErrPaymentFailed):
		status = http.StatusPaymentRequired
	}

	message := err.Error()
	if status == http.StatusInternalServerError && pol.Hardened() {
		message = "服务器内部错误"
	}

	ctx.JSON(status, gin.H{
		"code":    status,
		"message": message,
	})
}

// respondBadRequest 参数绑定失败
func respondBadRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"code":    400,
		"message": "参数错误: " + err.Error(),
	})
}
