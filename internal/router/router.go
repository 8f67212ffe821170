package router

import (
	"github.com/gin-gonic/gin"

	"shopsec_dev_v1_202608/internal/controller"
	"shopsec_dev_v1_202608/internal/middleware"
	"shopsec_dev_v1_202608/internal/policy"
)

// InitRoutes 注册所有路由
func InitRoutes(r *gin.Engine,
	auth middleware.Authenticator,
	pol *policy.Config,
	authCtl *controller.AuthController,
	userCtl *controller.UserController,
	itemCtl *controller.ItemController,
	orderCtl *controller.OrderController,
	auditCtl *controller.AuditController) {
	// API 路由组
	api := r.Group("/api")
	{
		// auth 鉴权组（无需登录）
		authGroup := api.Group("/auth")
		{
			// POST /api/auth/register
			authGroup.POST("/register", authCtl.Register)
			authGroup.POST("/login", authCtl.Login)
			authGroup.POST("/refresh", authCtl.RefreshToken)
		}

		// 以下均需认证
		authed := api.Group("")
		authed.Use(middleware.Authenticated(auth, pol))
		{
			// users 用户组
			users := authed.Group("/users")
			{
				users.GET("/me", userCtl.GetMe)
				users.GET("", userCtl.ListUsers)
				users.GET("/:id", userCtl.GetProfile)
				users.PUT("/:id", userCtl.UpdateProfile)
			}

			// items 商品组
			items := authed.Group("/items")
			{
				items.GET("", itemCtl.GetList)
				items.POST("", itemCtl.Create)
				items.GET("/:id", itemCtl.GetDetail)
				items.PUT("/:id", itemCtl.Update)
				// POST /api/items/:id/image 按 URL 抓图
				items.POST("/:id/image", itemCtl.AttachImage)
			}

			// orders 订单组
			orders := authed.Group("/orders")
			{
				orders.GET("", orderCtl.GetList)
				orders.GET("/cart", orderCtl.GetCart)
				orders.POST("/cart/items", orderCtl.AddItem)
				orders.GET("/:id", orderCtl.GetDetail)
				orders.POST("/:id/checkout", orderCtl.StartCheckout)
				orders.POST("/:id/coupon", orderCtl.ApplyCoupon)
				orders.POST("/:id/pay", orderCtl.Pay)
				orders.POST("/:id/ship", orderCtl.Ship)
			}

			// admin 运维组
			admin := authed.Group("/admin")
			{
				admin.GET("/events", auditCtl.GetList)
			}
		}
	}
}
